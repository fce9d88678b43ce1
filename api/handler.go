package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"yunsou/model"
	"yunsou/service"
	"yunsou/util"
	jsonutil "yunsou/util/json"
)

var (
	searchService  *service.SearchService
	historyService *service.HistoryService
)

// SetSearchService 设置搜索服务
func SetSearchService(s *service.SearchService) {
	searchService = s
}

// SetHistoryService 设置搜索历史服务
func SetHistoryService(s *service.HistoryService) {
	historyService = s
}

// SearchHandler 搜索处理函数，GET从URL参数取值，POST从请求体取值
func SearchHandler(c *gin.Context) {
	var req model.SearchRequest

	if c.Request.Method == http.MethodGet {
		req = model.SearchRequest{
			Keyword:      c.Query("kw"),
			Channels:     splitListParam(c.QueryArray("channels")),
			Concurrency:  util.StringToInt(c.Query("conc")),
			ForceRefresh: util.StringToBool(c.Query("refresh")),
			ResultType:   c.Query("res"),
			SourceType:   c.Query("src"),
			Plugins:      splitListParam(c.QueryArray("plugins")),
			CloudTypes:   splitListParam(c.QueryArray("cloud_types")),
		}

		// ext参数是URL编码后的JSON对象
		if extStr := c.Query("ext"); extStr != "" {
			ext := make(map[string]interface{})
			if err := jsonutil.UnmarshalString(extStr, &ext); err != nil {
				c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "无效的ext参数: "+err.Error()))
				return
			}
			req.Ext = ext
		}
	} else {
		data, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "读取请求数据失败: "+err.Error()))
			return
		}
		if err := jsonutil.Unmarshal(data, &req); err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(400, "无效的请求参数: "+err.Error()))
			return
		}
	}

	result := searchService.Search(
		req.Keyword,
		req.Channels,
		req.Concurrency,
		req.ForceRefresh,
		req.ResultType,
		req.SourceType,
		req.Plugins,
		req.CloudTypes,
		req.Ext,
	)

	// 登录用户记一条搜索历史
	if userID := GetCurrentUserID(c); userID != "" && historyService != nil {
		historyService.Record(userID, strings.TrimSpace(req.Keyword), req.SourceType, result.Total)
	}

	response := model.NewSuccessResponse(result)
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}

// splitListParam 展开列表参数，同时支持重复参数和逗号分隔两种写法
func splitListParam(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
