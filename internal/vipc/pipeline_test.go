package vipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineDropsWhenSubscriberFull(t *testing.T) {
	p := NewPipeline()
	defer p.Close()

	ch := p.Subscribe("slow", StreamRoad, 1)
	p.Publish(Frame{Stream: StreamRoad, Meta: FrameMeta{FrameID: 1}})
	p.Publish(Frame{Stream: StreamRoad, Meta: FrameMeta{FrameID: 2}})

	frame := <-ch
	assert.Equal(t, uint32(1), frame.Meta.FrameID)
	assert.Len(t, ch, 0)
}

func TestPipelineResubscribeReplacesChannel(t *testing.T) {
	p := NewPipeline()
	defer p.Close()

	first := p.Subscribe("viewer", StreamRoad, 1)
	second := p.Subscribe("viewer", StreamRoad, 1)

	_, ok := <-first
	assert.False(t, ok, "replaced channel is closed")

	p.Publish(Frame{Stream: StreamRoad})
	assert.Len(t, second, 1)

	p.Unsubscribe("viewer")
	p.Unsubscribe("viewer")
	assert.False(t, p.HasSubscribers(StreamRoad))
}
