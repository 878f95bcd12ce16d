package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "t-42")
	assert.Equal(t, "t-42", FromContext(ctx))
	assert.Equal(t, "", FromContext(context.Background()))
}
