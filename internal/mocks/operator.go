package mocks

import (
	"context"

	"github.com/brettbedarf/sfm"
	"github.com/stretchr/testify/mock"
)

// MockOperator implements sfm.Operator for testing across packages
type MockOperator struct {
	mock.Mock
}

func (m *MockOperator) Dispatch(ctx context.Context, req *sfm.Request) (*sfm.Result, error) {
	args := m.Called(ctx, req)

	// Handle function return types (for tests that inspect the request)
	if fn, ok := args.Get(0).(func(context.Context, *sfm.Request) *sfm.Result); ok {
		return fn(ctx, req), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sfm.Result), args.Error(1)
}

// MatchVerb returns an argument matcher for requests carrying verb v.
func MatchVerb(v sfm.Verb) any {
	return mock.MatchedBy(func(req *sfm.Request) bool {
		return req.Op != nil && req.Op.Verb() == v
	})
}
