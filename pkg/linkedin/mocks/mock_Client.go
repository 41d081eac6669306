// Package mocks provides test doubles for the linkedin client.
package mocks

import (
	"context"

	linkedin "github.com/sells-group/candidate-profiler/pkg/linkedin"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetProfile provides a mock function with given fields: ctx, username
func (_m *MockClient) GetProfile(ctx context.Context, username string) (*linkedin.Profile, error) {
	ret := _m.Called(ctx, username)

	if len(ret) == 0 {
		panic("no return value specified for GetProfile")
	}

	var r0 *linkedin.Profile
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*linkedin.Profile, error)); ok {
		return rf(ctx, username)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*linkedin.Profile)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient and registers cleanup.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
