package sema

import "nlc/internal/ipm"

// blockReturns reports whether every path through body ends in a Return.
// A loop without a condition only exits through a Return, so it counts as
// returning; the validator rejects such loops when they contain none.
func blockReturns(body []ipm.Stmt) bool {
	for _, s := range body {
		if stmtReturns(s) {
			return true
		}
	}
	return false
}

func stmtReturns(s ipm.Stmt) bool {
	switch s := s.(type) {
	case *ipm.Return:
		return true
	case *ipm.If:
		return len(s.Else) > 0 && blockReturns(s.Then) && blockReturns(s.Else)
	case *ipm.Loop:
		return s.Cond == nil
	}
	return false
}

// containsReturn reports whether a Return appears anywhere in body.
func containsReturn(body []ipm.Stmt) bool {
	for _, s := range body {
		switch s := s.(type) {
		case *ipm.Return:
			return true
		case *ipm.If:
			if containsReturn(s.Then) || containsReturn(s.Else) {
				return true
			}
		case *ipm.Loop:
			if containsReturn(s.Body) {
				return true
			}
		}
	}
	return false
}
