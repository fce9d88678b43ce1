package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCacheSetGet(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Set("key1", []byte("hello"), time.Minute))

	data, ok, err := c.Get("key1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	_, ok, err = c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskCacheOverwrite(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Set("key1", []byte("old"), time.Minute))
	require.NoError(t, c.Set("key1", []byte("new"), time.Minute))

	data, ok, err := c.Get("key1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), data)
}

func TestDiskCacheExpiry(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Set("short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get("short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskCacheDelete(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Set("key1", []byte("v"), time.Minute))
	require.NoError(t, c.Delete("key1"))

	_, ok, err := c.Get("key1")
	require.NoError(t, err)
	assert.False(t, ok)

	// 删除不存在的键不报错
	assert.NoError(t, c.Delete("key1"))
}

func TestDiskCacheMetadataReload(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewDiskCache(dir, 10)
	require.NoError(t, err)
	require.NoError(t, c1.Set("persist", []byte("durable"), time.Minute))

	// 新实例从.meta文件重建索引
	c2, err := NewDiskCache(dir, 10)
	require.NoError(t, err)

	data, ok, err := c2.Get("persist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("durable"), data)
}

func TestDiskCacheLRUEviction(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 1)
	require.NoError(t, err)

	// 预算1MB，三个400KB条目放不下
	payload := bytes.Repeat([]byte("x"), 400*1024)

	require.NoError(t, c.Set("e1", payload, time.Minute))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Set("e2", payload, time.Minute))
	time.Sleep(5 * time.Millisecond)

	// 触碰e1让e2成为最久未使用
	_, ok, err := c.Get("e1")
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, c.Set("e3", payload, time.Minute))

	_, ok, err = c.Get("e1")
	require.NoError(t, err)
	assert.True(t, ok, "刚使用过的条目不应被淘汰")

	_, ok, err = c.Get("e2")
	require.NoError(t, err)
	assert.False(t, ok, "最久未使用的条目应被淘汰")

	_, ok, err = c.Get("e3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiskCacheClear(t *testing.T) {
	c, err := NewDiskCache(t.TempDir(), 10)
	require.NoError(t, err)

	require.NoError(t, c.Set("k1", []byte("v1"), time.Minute))
	require.NoError(t, c.Set("k2", []byte("v2"), time.Minute))
	require.NoError(t, c.Clear())

	_, ok, err := c.Get("k1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.Get("k2")
	require.NoError(t, err)
	assert.False(t, ok)
}
