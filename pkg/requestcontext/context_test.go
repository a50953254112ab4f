package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessorsReturnZeroValuesWhenUnset(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, Subject(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.Empty(t, Device(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	ctx = WithSubject(ctx, "user-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientMetadata(ctx, "10.0.0.1", "curl/8.0", "api")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "user-1", Subject(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "api", Device(ctx))
}
