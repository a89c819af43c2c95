package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubOrder(t *testing.T) {
	var h Hub[int]
	var got []string

	h.Subscribe(func(int) { got = append(got, "a") })
	h.Subscribe(func(int) { got = append(got, "b") })
	h.Subscribe(func(int) { got = append(got, "c") })
	h.Publish(1)

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 3, h.Len())
}

func TestHubUnsubscribeDuringPublish(t *testing.T) {
	var h Hub[int]
	var got []string
	var unsubB func()

	h.Subscribe(func(int) {
		got = append(got, "a")
		unsubB()
	})
	unsubB = h.Subscribe(func(int) { got = append(got, "b") })

	h.Publish(1) // b still receives this one
	h.Publish(2)

	assert.Equal(t, []string{"a", "b", "a"}, got)
	assert.Equal(t, 1, h.Len())
}

func TestHubSubscribeDuringPublish(t *testing.T) {
	var h Hub[int]
	calls := 0

	h.Subscribe(func(int) {
		calls++
		if calls == 1 {
			h.Subscribe(func(int) { calls += 10 })
		}
	})

	h.Publish(1)
	assert.Equal(t, 1, calls)
	h.Publish(2)
	assert.Equal(t, 12, calls)
}

func TestHubUnsubscribeTwice(t *testing.T) {
	var h Hub[string]
	unsub := h.Subscribe(func(string) {})
	unsub()
	unsub()
	assert.Zero(t, h.Len())
	h.Publish("nobody")
}
