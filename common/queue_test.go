// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryQueue(t *testing.T) {
	q := NewEntryQueue[string]()

	assert.NotNil(t, q, "NewEntryQueue() should return a non-nil queue.")
	assert.True(t, q.Empty(), "A new queue should be empty.")
	assert.Equal(t, 0, q.Len(), "A new queue should have a size of 0.")
}

func TestEntryQueue_Enqueue(t *testing.T) {
	q := NewEntryQueue[string]()

	q.Enqueue("bin")
	q.Enqueue("etc")

	assert.Equal(t, "bin", q.Front())
	assert.Equal(t, "etc", q.Back())
	assert.False(t, q.Empty())
}

func TestEntryQueue_SingleDequeue(t *testing.T) {
	q := NewEntryQueue[string]()
	q.Enqueue("bin")
	q.Enqueue("etc")
	require.Equal(t, "bin", q.Front())
	require.False(t, q.Empty())

	val := q.Dequeue()

	assert.Equal(t, "bin", val)
	assert.Equal(t, "etc", q.Front())
}

func TestEntryQueue_MultipleDequeues(t *testing.T) {
	q := NewEntryQueue[string]()
	q.Enqueue("bin")
	q.Enqueue("etc")
	require.Equal(t, "bin", q.Front())
	require.False(t, q.Empty())
	val := q.Dequeue()
	require.Equal(t, "bin", val)
	require.Equal(t, "etc", q.Front())

	val = q.Dequeue()

	assert.Equal(t, "etc", val)
	assert.True(t, q.Empty())
}

func TestEntryQueue_DequeueEmptyQueue(t *testing.T) {
	assert.Panics(t, func() {
		NewEntryQueue[string]().Dequeue()
	}, "Dequeue should panic when called on an empty queue.")
}

func TestEntryQueue_Front(t *testing.T) {
	q := NewEntryQueue[string]()
	q.Enqueue("bin")
	require.Equal(t, 1, q.Len())

	val := q.Front()

	assert.Equal(t, "bin", val)
	assert.Equal(t, 1, q.Len()) // Length should remain unchanged.
	assert.False(t, q.Empty())
}

func TestEntryQueue_FrontEmptyQueue(t *testing.T) {
	assert.Panics(t, func() {
		NewEntryQueue[string]().Front()
	}, "Front should panic when called on an empty queue.")
}

func TestEntryQueue_BackEmptyQueue(t *testing.T) {
	assert.Panics(t, func() {
		NewEntryQueue[string]().Back()
	}, "Back should panic when called on an empty queue.")
}

func TestEntryQueue_EmptyTrue(t *testing.T) {
	q := NewEntryQueue[string]()
	q.Enqueue("bin")
	q.Dequeue()

	assert.True(t, q.Empty())
}

func TestEntryQueue_EmptyFalse(t *testing.T) {
	q := NewEntryQueue[string]()
	q.Enqueue("bin")

	assert.False(t, q.Empty())
}

func TestEntryQueue_Len(t *testing.T) {
	q := NewEntryQueue[string]()
	assert.Equal(t, 0, q.Len())

	q.Enqueue("bin")
	assert.Equal(t, 1, q.Len())

	q.Enqueue("etc")
	assert.Equal(t, 2, q.Len())

	q.Enqueue("usr")
	assert.Equal(t, 3, q.Len())

	val := q.Dequeue()
	assert.Equal(t, "bin", val)
	assert.Equal(t, 2, q.Len())

	val = q.Dequeue()
	assert.Equal(t, "etc", val)
	assert.Equal(t, 1, q.Len())

	val = q.Dequeue()
	assert.Equal(t, "usr", val)
	assert.Equal(t, 0, q.Len())
}

// TestEntryQueue_PreservesInsertionOrder mirrors the way kfs.Readdir drains
// a directory's children: entries must come back in the order they were
// enqueued, regardless of how many were added before the first Dequeue.
func TestEntryQueue_PreservesInsertionOrder(t *testing.T) {
	q := NewEntryQueue[string]()
	names := []string{"bin", "etc", "usr", "var", "tmp"}
	for _, n := range names {
		q.Enqueue(n)
	}

	var got []string
	for !q.Empty() {
		got = append(got, q.Dequeue())
	}

	assert.Equal(t, names, got)
}
