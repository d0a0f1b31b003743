package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishToAgentOnlyReachesThatAgent(t *testing.T) {
	b := New()
	chA := b.SubscribeAgent("a")
	chB := b.SubscribeAgent("b")

	b.Publish("kernel", AgentTarget("a"), PayloadLifecycle, "hi")

	select {
	case e := <-chA:
		require.Equal(t, "hi", e.Data)
	default:
		t.Fatal("expected event on agent a's channel")
	}

	select {
	case <-chB:
		t.Fatal("agent b should not receive an agent-targeted event for a")
	default:
	}
}

func TestBroadcastReachesSystemAndAllAgents(t *testing.T) {
	b := New()
	chA := b.SubscribeAgent("a")
	chB := b.SubscribeAgent("b")
	sys := b.SubscribeSystem()

	b.Publish("kernel", BroadcastTarget(), PayloadSystem, nil)

	for _, ch := range []<-chan Event{chA, chB, sys} {
		select {
		case <-ch:
		default:
			t.Fatal("expected broadcast delivery")
		}
	}
}

func TestPatternTargetReachesSystemChannelOnly(t *testing.T) {
	b := New()
	chA := b.SubscribeAgent("a")
	sys := b.SubscribeSystem()

	b.Publish("kernel", PatternTarget("agent-*"), PayloadSystem, nil)

	select {
	case <-sys:
	default:
		t.Fatal("expected pattern-targeted event on system channel")
	}
	select {
	case <-chA:
		t.Fatal("pattern target must not reach per-agent channels directly")
	default:
	}
}

func TestHistoryReturnsReverseChronological(t *testing.T) {
	b := New()
	b.Publish("k", SystemTarget(), PayloadSystem, 1)
	b.Publish("k", SystemTarget(), PayloadSystem, 2)
	b.Publish("k", SystemTarget(), PayloadSystem, 3)

	h := b.History(2)
	require.Len(t, h, 2)
	require.Equal(t, 3, h[0].Data)
	require.Equal(t, 2, h[1].Data)
}

func TestHistoryRingBufferEviction(t *testing.T) {
	b := New()
	for i := 0; i < historySize+10; i++ {
		b.Publish("k", SystemTarget(), PayloadSystem, i)
	}
	h := b.History(historySize)
	require.Len(t, h, historySize)
	require.Equal(t, historySize+9, h[0].Data)
	require.Equal(t, 10, h[historySize-1].Data)
}

func TestUnsubscribeAgentRemovesChannel(t *testing.T) {
	b := New()
	b.SubscribeAgent("a")
	b.UnsubscribeAgent("a")
	b.Publish("k", AgentTarget("a"), PayloadLifecycle, nil) // must not panic
}

func TestFullSubscriberChannelDoesNotBlockPublisher(t *testing.T) {
	b := New()
	ch := b.SubscribeAgent("a")
	for i := 0; i < agentChannelCapacity+5; i++ {
		b.Publish("k", AgentTarget("a"), PayloadLifecycle, i) // must never block
	}
	require.Len(t, ch, agentChannelCapacity)
}
