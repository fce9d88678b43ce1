package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yunsou/config"
	"yunsou/model"
	"yunsou/plugin"
)

// setSearchTestConfig 给搜索服务测试换上固定配置，用例结束后还原
func setSearchTestConfig(t *testing.T) {
	t.Helper()
	old := config.AppConfig
	config.AppConfig = &config.Config{
		DefaultChannels:    []string{},
		DefaultConcurrency: 8,
		CacheEnabled:       false,
		PluginTimeout:      30 * time.Second,
		ChannelResultLimit: 30,
	}
	t.Cleanup(func() { config.AppConfig = old })
}

// fakePlugin 可编程的测试插件，按关键词返回预置结果并记录调用
type fakePlugin struct {
	name       string
	priority   int
	skipFilter bool
	err        error
	results    map[string][]model.SearchResult

	calls    int32
	mu       sync.Mutex
	keywords []string
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Priority() int { return p.priority }

func (p *fakePlugin) SetMainCacheKey(string) {}

func (p *fakePlugin) SetCurrentKeyword(string) {}

func (p *fakePlugin) SkipServiceFilter() bool { return p.skipFilter }

func (p *fakePlugin) Search(keyword string, ext map[string]interface{}) ([]model.SearchResult, error) {
	atomic.AddInt32(&p.calls, 1)
	p.mu.Lock()
	p.keywords = append(p.keywords, keyword)
	p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	return p.results[keyword], nil
}

func (p *fakePlugin) AsyncSearch(keyword string, _ func(*http.Client, string, map[string]interface{}) ([]model.SearchResult, error), _ string, ext map[string]interface{}) ([]model.SearchResult, error) {
	return p.Search(keyword, ext)
}

func (p *fakePlugin) searchedKeywords() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keywords...)
}

func newFakeManager(plugins ...plugin.AsyncSearchPlugin) *plugin.PluginManager {
	pm := plugin.NewPluginManager()
	for _, p := range plugins {
		pm.RegisterPlugin(p)
	}
	return pm
}

func staticChannelSearcher(data map[string][]model.SearchResult) channelSearchFunc {
	return func(ctx context.Context, keyword string, channel string) ([]model.SearchResult, error) {
		return data[channel], nil
	}
}

func tgResult(channel, msgID, title string, dt time.Time, links ...model.Link) model.SearchResult {
	return model.SearchResult{
		MessageID: msgID,
		UniqueID:  channel + "_" + msgID,
		Channel:   channel,
		Datetime:  dt,
		Title:     title,
		Links:     links,
	}
}

func pluginResult(uniqueID, title string, dt time.Time, links ...model.Link) model.SearchResult {
	return model.SearchResult{
		UniqueID: uniqueID,
		Datetime: dt,
		Title:    title,
		Links:    links,
	}
}

func link(linkType, url string) model.Link {
	return model.Link{Type: linkType, URL: url}
}

func TestSearchMergesChannelAndPluginResults(t *testing.T) {
	setSearchTestConfig(t)

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakePlugin{
		name:       "fake",
		skipFilter: true,
		results: map[string][]model.SearchResult{
			"冰雪": {pluginResult("fake-1", "冰雪奇缘 网盘合集", base.Add(2*time.Hour), link("aliyun", "https://www.alipan.com/s/a3"))},
		},
	}
	svc := NewSearchService(newFakeManager(fake), WithChannelSearcher(staticChannelSearcher(map[string][]model.SearchResult{
		"alpha": {tgResult("alpha", "1", "冰雪奇缘 4K", base, link("baidu", "https://pan.baidu.com/s/a1"))},
		"beta":  {tgResult("beta", "2", "冰雪奇缘 蓝光", base.Add(time.Hour), link("quark", "https://pan.quark.cn/s/a2"))},
	})))

	resp := svc.Search("冰雪", []string{"alpha", "beta"}, 4, false, "all", "all", nil, nil, nil)

	// all模式的total是结果数加归并链接数
	assert.Equal(t, 6, resp.Total)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "fake-1", resp.Results[0].UniqueID)
	assert.Equal(t, "beta_2", resp.Results[1].UniqueID)
	assert.Equal(t, "alpha_1", resp.Results[2].UniqueID)

	require.Len(t, resp.MergedByType, 3)
	require.Len(t, resp.MergedByType["baidu"], 1)
	assert.Equal(t, "tg:alpha", resp.MergedByType["baidu"][0].Source)
	assert.Equal(t, "tg:beta", resp.MergedByType["quark"][0].Source)
	assert.Equal(t, "plugin:fake", resp.MergedByType["aliyun"][0].Source)
}

func TestSearchDedupKeepsChannelResult(t *testing.T) {
	setSearchTestConfig(t)

	dt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	shared := model.SearchResult{
		UniqueID:  "shared-1",
		MessageID: "7",
		Channel:   "alpha",
		Title:     "频道版本",
		Datetime:  dt,
		Links:     []model.Link{link("baidu", "https://pan.baidu.com/s/x1")},
	}
	fake := &fakePlugin{
		name:       "dup",
		skipFilter: true,
		results: map[string][]model.SearchResult{
			"测试": {pluginResult("shared-1", "插件版本", dt.Add(time.Hour), link("quark", "https://pan.quark.cn/s/x2"))},
		},
	}
	svc := NewSearchService(newFakeManager(fake), WithChannelSearcher(staticChannelSearcher(map[string][]model.SearchResult{
		"alpha": {shared},
	})))

	resp := svc.Search("测试", []string{"alpha"}, 2, false, "results", "all", nil, nil, nil)

	// 身份键重复时频道结果先到先得
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "频道版本", resp.Results[0].Title)
	assert.Equal(t, "alpha", resp.Results[0].Channel)
}

func TestSearchSortsByTimeDescZeroLast(t *testing.T) {
	setSearchTestConfig(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakePlugin{
		name:       "sorted",
		skipFilter: true,
		results: map[string][]model.SearchResult{
			"排序": {
				pluginResult("p-tie-b", "同时刻B", base.Add(48*time.Hour), link("baidu", "https://pan.baidu.com/s/b")),
				pluginResult("p-zero", "无时间", time.Time{}, link("baidu", "https://pan.baidu.com/s/z")),
				pluginResult("p-new", "最新", base.Add(72*time.Hour), link("baidu", "https://pan.baidu.com/s/n")),
				pluginResult("p-tie-a", "同时刻A", base.Add(48*time.Hour), link("baidu", "https://pan.baidu.com/s/a")),
			},
		},
	}
	svc := NewSearchService(newFakeManager(fake))

	resp := svc.Search("排序", nil, 2, false, "results", "plugin", nil, nil, nil)

	require.Len(t, resp.Results, 4)
	assert.Equal(t, "p-new", resp.Results[0].UniqueID)
	// 同一时间按标题字典序，零值时间沉底
	assert.Equal(t, "p-tie-a", resp.Results[1].UniqueID)
	assert.Equal(t, "p-tie-b", resp.Results[2].UniqueID)
	assert.Equal(t, "p-zero", resp.Results[3].UniqueID)
}

func TestSearchShortKeywordFallback(t *testing.T) {
	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty keyword hits first fallback", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{
			name:       "fb",
			skipFilter: true,
			results: map[string][]model.SearchResult{
				"电影": {pluginResult("fb-1", "热门电影合集", dt, link("baidu", "https://pan.baidu.com/s/f1"))},
			},
		}
		svc := NewSearchService(newFakeManager(fake))

		resp := svc.Search("", nil, 2, false, "results", "plugin", nil, nil, nil)

		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, []string{"", "电影"}, fake.searchedKeywords())

		// 兜底结果记在原始关键词的缓存键下，重搜不再打插件
		resp = svc.Search("", nil, 2, false, "results", "plugin", nil, nil, nil)
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, int32(2), atomic.LoadInt32(&fake.calls))
	})

	t.Run("single rune walks fallback list in order", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{
			name:       "fb2",
			skipFilter: true,
			results: map[string][]model.SearchResult{
				"4k": {pluginResult("fb2-1", "4K资源", dt, link("quark", "https://pan.quark.cn/s/f2"))},
			},
		}
		svc := NewSearchService(newFakeManager(fake))

		resp := svc.Search("剧", nil, 2, false, "results", "plugin", nil, nil, nil)

		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, []string{"剧", "电影", "电视剧", "4k"}, fake.searchedKeywords())
	})

	t.Run("normal keyword never falls back", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{name: "fb3", skipFilter: true}
		svc := NewSearchService(newFakeManager(fake))

		resp := svc.Search("不存在的资源xyz", nil, 2, false, "results", "plugin", nil, nil, nil)

		assert.Equal(t, 0, resp.Total)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))

		// 空结果不缓存，重搜会再次调用插件
		svc.Search("不存在的资源xyz", nil, 2, false, "results", "plugin", nil, nil, nil)
		assert.Equal(t, int32(2), atomic.LoadInt32(&fake.calls))
	})
}

func TestSearchForceRefreshBypassesCache(t *testing.T) {
	setSearchTestConfig(t)

	var calls int32
	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewSearchService(nil, WithChannelSearcher(func(ctx context.Context, keyword, channel string) ([]model.SearchResult, error) {
		atomic.AddInt32(&calls, 1)
		return []model.SearchResult{tgResult(channel, "1", "缓存测试", dt, link("baidu", "https://pan.baidu.com/s/c1"))}, nil
	}))

	svc.Search("测试", []string{"alpha"}, 2, false, "results", "tg", nil, nil, nil)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	svc.Search("测试", []string{"alpha"}, 2, false, "results", "tg", nil, nil, nil)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second search should hit cache")

	svc.Search("测试", []string{"alpha"}, 2, true, "results", "tg", nil, nil, nil)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "forced refresh should bypass cache")
}

func TestSearchChannelErrorDoesNotFailResponse(t *testing.T) {
	setSearchTestConfig(t)

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewSearchService(nil, WithChannelSearcher(func(ctx context.Context, keyword, channel string) ([]model.SearchResult, error) {
		if channel == "broken" {
			return nil, errors.New("fetch failed")
		}
		return []model.SearchResult{tgResult(channel, "1", "正常结果", dt, link("baidu", "https://pan.baidu.com/s/e1"))}, nil
	}))

	resp := svc.Search("测试", []string{"broken", "good"}, 2, false, "results", "tg", nil, nil, nil)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "good", resp.Results[0].Channel)
}

func TestSearchCloudTypesAllowList(t *testing.T) {
	setSearchTestConfig(t)

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakePlugin{
		name:       "cloud",
		skipFilter: true,
		results: map[string][]model.SearchResult{
			"网盘": {
				pluginResult("c-1", "资源一", dt,
					link("baidu", "https://pan.baidu.com/s/t1"),
					link("quark", "https://pan.quark.cn/s/t2")),
				pluginResult("c-2", "资源二", dt.Add(time.Hour),
					link("magnet", "magnet:?xt=urn:btih:aabbccddeeff00112233"),
					link("", "https://unknown.example.com/t4")),
			},
		},
	}

	t.Run("allow list filters groups", func(t *testing.T) {
		svc := NewSearchService(newFakeManager(fake))
		resp := svc.Search("网盘", nil, 2, false, "merged_by_type", "plugin", nil, []string{" BAIDU "}, nil)

		assert.Equal(t, 1, resp.Total)
		require.Len(t, resp.MergedByType, 1)
		require.Len(t, resp.MergedByType["baidu"], 1)
	})

	t.Run("no allow list keeps all groups", func(t *testing.T) {
		svc := NewSearchService(newFakeManager(fake))
		resp := svc.Search("网盘", nil, 2, false, "merged_by_type", "plugin", nil, nil, nil)

		assert.Equal(t, 4, resp.Total)
		// 空类型归入others组
		assert.Len(t, resp.MergedByType["others"], 1)
		assert.Len(t, resp.MergedByType["baidu"], 1)
		assert.Len(t, resp.MergedByType["quark"], 1)
		assert.Len(t, resp.MergedByType["magnet"], 1)
	})
}

func TestSearchMergedLinkDedup(t *testing.T) {
	setSearchTestConfig(t)

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakePlugin{
		name:       "dedup",
		skipFilter: true,
		results: map[string][]model.SearchResult{
			"去重": {
				pluginResult("d-old", "旧标题", dt, link("baidu", "https://pan.baidu.com/s/same")),
				pluginResult("d-new", "新标题", dt.Add(time.Hour), link("baidu", "https://pan.baidu.com/s/same")),
				pluginResult("d-type", "跨类型", dt, link("quark", "https://mixed.example.com/s/u2"), link("baidu", "https://mixed.example.com/s/u2")),
			},
		},
	}
	svc := NewSearchService(newFakeManager(fake))

	resp := svc.Search("去重", nil, 2, false, "merged_by_type", "plugin", nil, nil, nil)

	// 同类型同URL只留一条，排序后新结果先处理，Note取新标题
	require.Len(t, resp.MergedByType["baidu"], 2)
	var sameNote string
	for _, l := range resp.MergedByType["baidu"] {
		if l.URL == "https://pan.baidu.com/s/same" {
			sameNote = l.Note
		}
	}
	assert.Equal(t, "新标题", sameNote)

	// 同URL不同类型各归各组
	require.Len(t, resp.MergedByType["quark"], 1)
	assert.Equal(t, "https://mixed.example.com/s/u2", resp.MergedByType["quark"][0].URL)
}

func TestSearchResultTypeShapes(t *testing.T) {
	setSearchTestConfig(t)

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakePlugin{
		name:       "shape",
		skipFilter: true,
		results: map[string][]model.SearchResult{
			"形态": {pluginResult("s-2", "插件结果", dt, link("aliyun", "https://www.alipan.com/s/s3"))},
		},
	}
	newSvc := func() *SearchService {
		return NewSearchService(newFakeManager(fake), WithChannelSearcher(staticChannelSearcher(map[string][]model.SearchResult{
			"alpha": {tgResult("alpha", "1", "频道结果", dt,
				link("baidu", "https://pan.baidu.com/s/s1"),
				link("quark", "https://pan.quark.cn/s/s2"))},
		})))
	}

	t.Run("results", func(t *testing.T) {
		resp := newSvc().Search("形态", []string{"alpha"}, 2, false, "results", "all", nil, nil, nil)
		assert.Equal(t, 2, resp.Total)
		assert.Len(t, resp.Results, 2)
		assert.Nil(t, resp.MergedByType)
	})

	t.Run("merged_by_type", func(t *testing.T) {
		resp := newSvc().Search("形态", []string{"alpha"}, 2, false, "merged_by_type", "all", nil, nil, nil)
		assert.Equal(t, 3, resp.Total)
		assert.Nil(t, resp.Results)
		assert.Len(t, resp.MergedByType, 3)
	})

	t.Run("merge alias", func(t *testing.T) {
		resp := newSvc().Search("形态", []string{"alpha"}, 2, false, "merge", "all", nil, nil, nil)
		assert.Equal(t, 3, resp.Total)
		assert.Nil(t, resp.Results)
	})

	t.Run("empty type defaults to merged_by_type", func(t *testing.T) {
		resp := newSvc().Search("形态", []string{"alpha"}, 2, false, "", "all", nil, nil, nil)
		assert.Equal(t, 3, resp.Total)
		assert.Nil(t, resp.Results)
	})

	t.Run("all", func(t *testing.T) {
		resp := newSvc().Search("形态", []string{"alpha"}, 2, false, "all", "all", nil, nil, nil)
		assert.Equal(t, 5, resp.Total)
		assert.Len(t, resp.Results, 2)
		assert.Len(t, resp.MergedByType, 3)
	})
}

func TestSearchSourceTypeGating(t *testing.T) {
	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("tg only skips plugins", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{name: "gated", skipFilter: true}
		var channelCalls int32
		svc := NewSearchService(newFakeManager(fake), WithChannelSearcher(func(ctx context.Context, keyword, channel string) ([]model.SearchResult, error) {
			atomic.AddInt32(&channelCalls, 1)
			return []model.SearchResult{tgResult(channel, "1", "频道结果", dt, link("baidu", "https://pan.baidu.com/s/g1"))}, nil
		}))

		resp := svc.Search("测试", []string{"alpha"}, 2, false, "results", "tg", nil, nil, nil)

		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, int32(1), atomic.LoadInt32(&channelCalls))
		assert.Equal(t, int32(0), atomic.LoadInt32(&fake.calls))
	})

	t.Run("plugin only skips channels", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{
			name:       "gated2",
			skipFilter: true,
			results: map[string][]model.SearchResult{
				"测试": {pluginResult("g-1", "插件结果", dt, link("quark", "https://pan.quark.cn/s/g2"))},
			},
		}
		var channelCalls int32
		svc := NewSearchService(newFakeManager(fake), WithChannelSearcher(func(ctx context.Context, keyword, channel string) ([]model.SearchResult, error) {
			atomic.AddInt32(&channelCalls, 1)
			return nil, nil
		}))

		resp := svc.Search("测试", []string{"alpha"}, 2, false, "results", "plugin", nil, nil, nil)

		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, int32(0), atomic.LoadInt32(&channelCalls))
		assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
	})
}

func TestSearchSlowChannelDetaches(t *testing.T) {
	setSearchTestConfig(t)
	config.AppConfig.PluginTimeout = 100 * time.Millisecond

	oldMin := minSearchTimeout
	minSearchTimeout = 50 * time.Millisecond
	t.Cleanup(func() { minSearchTimeout = oldMin })

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewSearchService(nil, WithChannelSearcher(func(ctx context.Context, keyword, channel string) ([]model.SearchResult, error) {
		if channel == "slow" {
			time.Sleep(600 * time.Millisecond)
		}
		return []model.SearchResult{tgResult(channel, "1", channel+"结果", dt, link("baidu", "https://pan.baidu.com/s/"+channel))}, nil
	}))

	start := time.Now()
	resp := svc.Search("测试", []string{"fast", "slow"}, 4, false, "results", "tg", nil, nil, nil)
	elapsed := time.Since(start)

	// 慢频道超时缺席，不拖住整个响应
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "fast", resp.Results[0].Channel)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestEffectiveTimeout(t *testing.T) {
	setSearchTestConfig(t)
	svc := NewSearchService(nil)

	cases := []struct {
		name string
		ext  map[string]interface{}
		want time.Duration
	}{
		{"nil ext uses config", nil, 30 * time.Second},
		{"float64 seconds", map[string]interface{}{"plugin_timeout": float64(5)}, 5 * time.Second},
		{"int seconds", map[string]interface{}{"plugin_timeout": 7}, 7 * time.Second},
		{"json number", map[string]interface{}{"plugin_timeout": json.Number("2.5")}, 2500 * time.Millisecond},
		{"string seconds", map[string]interface{}{"plugin_timeout": "8"}, 8 * time.Second},
		{"below floor clamps", map[string]interface{}{"plugin_timeout": "0.5"}, 3 * time.Second},
		{"garbage string ignored", map[string]interface{}{"plugin_timeout": "很快"}, 30 * time.Second},
		{"negative ignored", map[string]interface{}{"plugin_timeout": float64(-2)}, 30 * time.Second},
		{"wrong type ignored", map[string]interface{}{"plugin_timeout": true}, 30 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.effectiveTimeout(tc.ext))
		})
	}

	t.Run("nil config falls back to 30s", func(t *testing.T) {
		prev := config.AppConfig
		config.AppConfig = nil
		defer func() { config.AppConfig = prev }()

		assert.Equal(t, 30*time.Second, svc.effectiveTimeout(nil))
	})
}

func TestFilterForResultList(t *testing.T) {
	setSearchTestConfig(t)

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	bare := model.SearchResult{UniqueID: "bare", Title: "裸结果"}
	withTime := model.SearchResult{UniqueID: "timed", Title: "有时间", Datetime: dt}
	withLink := model.SearchResult{UniqueID: "linked", Title: "有链接", Links: []model.Link{link("baidu", "https://pan.baidu.com/s/f")}}

	t.Run("default keeps timed or linked", func(t *testing.T) {
		svc := NewSearchService(nil)
		filtered := svc.filterForResultList([]model.SearchResult{bare, withTime, withLink})

		require.Len(t, filtered, 2)
		assert.Equal(t, "timed", filtered[0].UniqueID)
		assert.Equal(t, "linked", filtered[1].UniqueID)
	})

	t.Run("keyword priority rescues bare result", func(t *testing.T) {
		svc := NewSearchService(nil, WithKeywordPriority(func(title string) int {
			if strings.Contains(title, "热门") {
				return 5
			}
			return 0
		}))
		hot := model.SearchResult{UniqueID: "hot", Title: "热门资源"}
		filtered := svc.filterForResultList([]model.SearchResult{bare, hot})

		require.Len(t, filtered, 1)
		assert.Equal(t, "hot", filtered[0].UniqueID)
	})

	t.Run("source level rescues bare result", func(t *testing.T) {
		svc := NewSearchService(nil, WithSourceLevel(func(r *model.SearchResult) int {
			if r.Channel == "trusted" {
				return 1
			}
			return 3
		}))
		trusted := model.SearchResult{UniqueID: "trusted", Title: "可信来源", Channel: "trusted"}
		filtered := svc.filterForResultList([]model.SearchResult{bare, trusted})

		require.Len(t, filtered, 1)
		assert.Equal(t, "trusted", filtered[0].UniqueID)
	})
}

func TestSelectPlugins(t *testing.T) {
	setSearchTestConfig(t)

	one := &fakePlugin{name: "one"}
	two := &fakePlugin{name: "two"}
	three := &fakePlugin{name: "three"}
	svc := NewSearchService(newFakeManager(one, two, three))

	names := func(plugins []plugin.AsyncSearchPlugin) []string {
		out := make([]string, 0, len(plugins))
		for _, p := range plugins {
			out = append(out, p.Name())
		}
		return out
	}

	assert.Equal(t, []string{"two"}, names(svc.selectPlugins([]string{"two"})))
	assert.Equal(t, []string{"two"}, names(svc.selectPlugins([]string{" TWO "})))
	assert.Empty(t, svc.selectPlugins([]string{"nope"}))
	assert.Len(t, svc.selectPlugins(nil), 3)
	// 全空白的过滤列表等价于不过滤
	assert.Len(t, svc.selectPlugins([]string{" ", ""}), 3)
}

func TestSearchAppliesKeywordFilter(t *testing.T) {
	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	makeResults := func(prefix string) map[string][]model.SearchResult {
		return map[string][]model.SearchResult{
			"测试": {
				pluginResult(prefix+"-1", "包含测试词的资源", dt, link("baidu", "https://pan.baidu.com/s/"+prefix+"1")),
				pluginResult(prefix+"-2", "无关内容", dt, link("quark", "https://pan.quark.cn/s/"+prefix+"2")),
			},
		}
	}

	t.Run("filtered plugin drops unmatched titles", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{name: "strict", results: makeResults("st")}
		svc := NewSearchService(newFakeManager(fake))

		resp := svc.Search("测试", nil, 2, false, "results", "plugin", nil, nil, nil)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "包含测试词的资源", resp.Results[0].Title)
	})

	t.Run("skip filter plugin keeps everything", func(t *testing.T) {
		setSearchTestConfig(t)
		fake := &fakePlugin{name: "loose", skipFilter: true, results: makeResults("lo")}
		svc := NewSearchService(newFakeManager(fake))

		resp := svc.Search("测试", nil, 2, false, "results", "plugin", nil, nil, nil)

		assert.Len(t, resp.Results, 2)
	})
}

func TestMergeIntoPluginCache(t *testing.T) {
	setSearchTestConfig(t)
	svc := NewSearchService(nil)

	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := []model.SearchResult{
		pluginResult("m-a", "旧的A", dt),
		pluginResult("m-b", "只有旧版", dt),
	}
	svc.pluginCache.Set("plugin:合并:", existing)

	fresh := []model.SearchResult{
		pluginResult("m-a", "新的A", dt.Add(time.Hour)),
		pluginResult("m-c", "只有新版", dt.Add(time.Hour)),
	}
	svc.mergeIntoPluginCache("plugin:合并:", fresh)

	merged, ok := svc.pluginCache.Get("plugin:合并:")
	require.True(t, ok)
	require.Len(t, merged, 3)
	// 新数据在前且同身份键以新数据为准
	assert.Equal(t, "新的A", merged[0].Title)
	assert.Equal(t, "只有新版", merged[1].Title)
	assert.Equal(t, "只有旧版", merged[2].Title)

	// 空的新数据不触碰已有缓存
	svc.mergeIntoPluginCache("plugin:别的键:", nil)
	_, ok = svc.pluginCache.Get("plugin:别的键:")
	assert.False(t, ok)
}

func TestClampChannelConcurrency(t *testing.T) {
	assert.Equal(t, 2, clampChannelConcurrency(0))
	assert.Equal(t, 2, clampChannelConcurrency(1))
	assert.Equal(t, 5, clampChannelConcurrency(5))
	assert.Equal(t, 12, clampChannelConcurrency(50))
}

func TestCollectResults(t *testing.T) {
	r1 := pluginResult("c-1", "一", time.Time{})
	r2 := pluginResult("c-2", "二", time.Time{})
	r3 := pluginResult("c-3", "三", time.Time{})

	raw := []interface{}{nil, []model.SearchResult{r1}, "junk", []model.SearchResult{r2, r3}}
	results := collectResults(raw)

	require.Len(t, results, 3)
	assert.Equal(t, "c-1", results[0].UniqueID)
	assert.Equal(t, "c-3", results[2].UniqueID)
}

func TestResultSource(t *testing.T) {
	channelResult := model.SearchResult{Channel: "alpha", UniqueID: "alpha_1"}
	assert.Equal(t, "tg:alpha", resultSource(&channelResult))

	pluginSide := model.SearchResult{UniqueID: "soupan-3"}
	assert.Equal(t, "plugin:soupan", resultSource(&pluginSide))

	noDash := model.SearchResult{UniqueID: "opaque"}
	assert.Equal(t, "", resultSource(&noDash))

	leadingDash := model.SearchResult{UniqueID: "-x"}
	assert.Equal(t, "", resultSource(&leadingDash))
}

func TestSearchUsesDefaultChannelsFromConfig(t *testing.T) {
	setSearchTestConfig(t)
	config.AppConfig.DefaultChannels = []string{"defchan"}

	var mu sync.Mutex
	var searched []string
	dt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewSearchService(nil, WithChannelSearcher(func(ctx context.Context, keyword, channel string) ([]model.SearchResult, error) {
		mu.Lock()
		searched = append(searched, channel)
		mu.Unlock()
		return []model.SearchResult{tgResult(channel, "1", "默认频道结果", dt)}, nil
	}))

	resp := svc.Search("测试", nil, 2, false, "results", "tg", nil, nil, nil)

	assert.Equal(t, 1, resp.Total)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"defchan"}, searched)
}
