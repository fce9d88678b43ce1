package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKeyPrecedence(t *testing.T) {
	full := SearchResult{UniqueID: "chan_1", MessageID: "1", Title: "标题", Channel: "chan"}
	assert.Equal(t, "chan_1", full.IdentityKey())

	noUnique := SearchResult{MessageID: "42", Title: "标题", Channel: "chan"}
	assert.Equal(t, "42", noUnique.IdentityKey())

	bare := SearchResult{Title: "标题", Channel: "chan"}
	assert.Equal(t, "标题|chan", bare.IdentityKey())
}

func TestResponseHelpers(t *testing.T) {
	ok := NewSuccessResponse(map[string]int{"x": 1})
	assert.Equal(t, 0, ok.Code)
	assert.Equal(t, "success", ok.Message)
	assert.NotNil(t, ok.Data)

	bad := NewErrorResponse(400, "参数错误")
	assert.Equal(t, 400, bad.Code)
	assert.Equal(t, "参数错误", bad.Message)
	assert.Nil(t, bad.Data)
}
