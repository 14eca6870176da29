/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	derrors "github.com/tochemey/distro/errors"
	"github.com/tochemey/distro/log"
	"github.com/tochemey/distro/naming"
	"github.com/tochemey/distro/redo"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Register(ctx context.Context, key string, instances ...naming.Instance) error {
	return m.Called(ctx, key, instances).Error(0)
}

func (m *mockRemote) Deregister(ctx context.Context, key string, instances ...naming.Instance) error {
	return m.Called(ctx, key, instances).Error(0)
}

func (m *mockRemote) Subscribe(ctx context.Context, key string) ([]naming.Instance, error) {
	args := m.Called(ctx, key)
	instances, _ := args.Get(0).([]naming.Instance)
	return instances, args.Error(1)
}

func (m *mockRemote) Unsubscribe(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockRemote) Query(ctx context.Context, key string) ([]naming.Instance, error) {
	args := m.Called(ctx, key)
	instances, _ := args.Get(0).([]naming.Instance)
	return instances, args.Error(1)
}

var (
	ordersKey = naming.ServiceKey(naming.DefaultNamespace, naming.DefaultGroup, "orders")
	ephemeral = naming.NewInstance("10.0.0.1", 8080)
)

func newEphemeralProxy(t *testing.T, remote Remote) (*EphemeralProxy, *redo.Service) {
	t.Helper()
	redoService := redo.NewService(redo.WithLogger(log.DiscardLogger))
	proxy, err := NewEphemeralProxy(remote, redoService)
	require.NoError(t, err)
	redoService.OnConnected()
	return proxy, redoService
}

func TestEphemeralProxy(t *testing.T) {
	ctx := context.Background()

	t.Run("With register and deregister", func(t *testing.T) {
		remote := new(mockRemote)
		remote.On("Register", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
		remote.On("Deregister", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
		proxy, redoService := newEphemeralProxy(t, remote)

		require.NoError(t, proxy.RegisterService(ctx, ordersKey, ephemeral))
		assert.True(t, proxy.IsRegistered(ordersKey, ephemeral))

		redoService.Scheduler().Tick(ctx)
		remote.AssertNumberOfCalls(t, "Register", 1)

		require.NoError(t, proxy.DeregisterService(ctx, ordersKey, ephemeral))
		assert.False(t, proxy.IsRegistered(ordersKey, ephemeral))
		assert.Zero(t, proxy.instances.Len())
		remote.AssertExpectations(t)
	})
	t.Run("With a failed register replayed by redo", func(t *testing.T) {
		remote := new(mockRemote)
		remote.On("Register", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(derrors.ErrNotConnected).Once()
		remote.On("Register", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
		proxy, redoService := newEphemeralProxy(t, remote)

		require.ErrorIs(t, proxy.RegisterService(ctx, ordersKey, ephemeral), derrors.ErrNotConnected)
		assert.False(t, proxy.IsRegistered(ordersKey, ephemeral))

		redoService.Scheduler().Tick(ctx)
		assert.True(t, proxy.IsRegistered(ordersKey, ephemeral))
		remote.AssertExpectations(t)
	})
	t.Run("With a discarded deregister replayed by redo", func(t *testing.T) {
		remote := new(mockRemote)
		remote.On("Register", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
		remote.On("Deregister", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(derrors.ErrOperationDiscarded).Once()
		remote.On("Deregister", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
		proxy, redoService := newEphemeralProxy(t, remote)

		require.NoError(t, proxy.RegisterService(ctx, ordersKey, ephemeral))
		require.ErrorIs(t, proxy.DeregisterService(ctx, ordersKey, ephemeral), derrors.ErrOperationDiscarded)
		assert.Equal(t, 1, proxy.instances.Len())

		redoService.Scheduler().Tick(ctx)
		assert.Zero(t, proxy.instances.Len())
		remote.AssertExpectations(t)
	})
	t.Run("With reconnect", func(t *testing.T) {
		remote := new(mockRemote)
		remote.On("Register", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Twice()
		remote.On("Subscribe", mock.Anything, ordersKey).Return([]naming.Instance{ephemeral}, nil).Twice()
		proxy, redoService := newEphemeralProxy(t, remote)

		require.NoError(t, proxy.RegisterService(ctx, ordersKey, ephemeral))
		instances, err := proxy.Subscribe(ctx, ordersKey)
		require.NoError(t, err)
		assert.Equal(t, []naming.Instance{ephemeral}, instances)
		assert.True(t, proxy.IsSubscribed(ordersKey))

		redoService.OnDisconnect()
		assert.False(t, proxy.IsSubscribed(ordersKey))
		redoService.Scheduler().Tick(ctx)
		remote.AssertNumberOfCalls(t, "Register", 1)

		redoService.OnConnected()
		redoService.Scheduler().Tick(ctx)
		assert.True(t, proxy.IsSubscribed(ordersKey))
		assert.True(t, proxy.IsRegistered(ordersKey, ephemeral))
		remote.AssertExpectations(t)
	})
	t.Run("With unsubscribe", func(t *testing.T) {
		remote := new(mockRemote)
		remote.On("Subscribe", mock.Anything, ordersKey).Return(nil, nil).Once()
		remote.On("Unsubscribe", mock.Anything, ordersKey).Return(errors.New("timeout")).Once()
		remote.On("Unsubscribe", mock.Anything, ordersKey).Return(nil).Once()
		proxy, redoService := newEphemeralProxy(t, remote)

		_, err := proxy.Subscribe(ctx, ordersKey)
		require.NoError(t, err)
		require.Error(t, proxy.Unsubscribe(ctx, ordersKey))
		assert.Equal(t, 1, proxy.subscribers.Len())

		redoService.Scheduler().Tick(ctx)
		assert.Zero(t, proxy.subscribers.Len())
		remote.AssertExpectations(t)
	})
	t.Run("With the same redo service twice", func(t *testing.T) {
		redoService := redo.NewService(redo.WithLogger(log.DiscardLogger))
		_, err := NewEphemeralProxy(new(mockRemote), redoService)
		require.NoError(t, err)
		_, err = NewEphemeralProxy(new(mockRemote), redoService)
		require.Error(t, err)
	})
}

func TestDelegate(t *testing.T) {
	ctx := context.Background()
	persistent := naming.NewInstance("10.0.0.2", 8080)
	persistent.Ephemeral = false

	ephemeralRemote := new(mockRemote)
	ephemeralRemote.On("Register", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
	ephemeralRemote.On("Deregister", mock.Anything, ordersKey, []naming.Instance{ephemeral}).Return(nil).Once()
	ephemeralRemote.On("Subscribe", mock.Anything, ordersKey).Return(nil, nil).Once()
	ephemeralRemote.On("Unsubscribe", mock.Anything, ordersKey).Return(nil).Once()

	persistentRemote := new(mockRemote)
	persistentRemote.On("Register", mock.Anything, ordersKey, []naming.Instance{persistent}).Return(nil).Once()
	persistentRemote.On("Deregister", mock.Anything, ordersKey, []naming.Instance{persistent}).Return(nil).Once()

	ephemeralProxy, _ := newEphemeralProxy(t, ephemeralRemote)
	delegate := NewDelegate(ephemeralProxy, NewPersistentProxy(persistentRemote))

	require.NoError(t, delegate.RegisterService(ctx, ordersKey, ephemeral))
	require.NoError(t, delegate.RegisterService(ctx, ordersKey, persistent))
	_, err := delegate.Subscribe(ctx, ordersKey)
	require.NoError(t, err)
	require.NoError(t, delegate.Unsubscribe(ctx, ordersKey))
	require.NoError(t, delegate.DeregisterService(ctx, ordersKey, persistent))
	require.NoError(t, delegate.DeregisterService(ctx, ordersKey, ephemeral))

	ephemeralRemote.AssertExpectations(t)
	persistentRemote.AssertExpectations(t)
	persistentRemote.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestPersistentProxy(t *testing.T) {
	ctx := context.Background()
	remote := new(mockRemote)
	remote.On("Subscribe", mock.Anything, ordersKey).Return([]naming.Instance{ephemeral}, nil).Once()
	remote.On("Unsubscribe", mock.Anything, ordersKey).Return(derrors.ErrNotConnected).Once()

	proxy := NewPersistentProxy(remote)
	instances, err := proxy.Subscribe(ctx, ordersKey)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
	require.ErrorIs(t, proxy.Unsubscribe(ctx, ordersKey), derrors.ErrNotConnected)
	remote.AssertExpectations(t)
}
