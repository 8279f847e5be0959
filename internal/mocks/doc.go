// Package mocks provides shared mock implementations for testing.
//
// Each mock exposes function fields for its interface methods so a test can
// script exactly the behavior it needs, plus default return values for the
// common case:
//
//	completer := &mocks.MockCompleter{
//	    CompleteFn: func(ctx context.Context, req generation.Request) (*generation.Response, error) {
//	        return &generation.Response{Content: `{"days": []}`}, nil
//	    },
//	}
//
// Mocks that are only useful to a single package live next to that
// package's tests instead.
package mocks
