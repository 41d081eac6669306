// Package mocks provides test doubles for the github client.
package mocks

import (
	"context"

	github "github.com/sells-group/candidate-profiler/pkg/github"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetUser provides a mock function with given fields: ctx, username
func (_m *MockClient) GetUser(ctx context.Context, username string) (*github.User, error) {
	ret := _m.Called(ctx, username)

	if len(ret) == 0 {
		panic("no return value specified for GetUser")
	}

	var r0 *github.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*github.User)
	}
	return r0, ret.Error(1)
}

// ListRepos provides a mock function with given fields: ctx, username, limit
func (_m *MockClient) ListRepos(ctx context.Context, username string, limit int) ([]github.Repo, error) {
	ret := _m.Called(ctx, username, limit)

	if len(ret) == 0 {
		panic("no return value specified for ListRepos")
	}

	var r0 []github.Repo
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]github.Repo)
	}
	return r0, ret.Error(1)
}

// ListEvents provides a mock function with given fields: ctx, username
func (_m *MockClient) ListEvents(ctx context.Context, username string) ([]github.Event, error) {
	ret := _m.Called(ctx, username)

	if len(ret) == 0 {
		panic("no return value specified for ListEvents")
	}

	var r0 []github.Event
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]github.Event)
	}
	return r0, ret.Error(1)
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
