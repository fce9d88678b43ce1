package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"yunsou/model"
	jsonutil "yunsou/util/json"
)

// SearchHistoryHandler 获取当前用户的搜索历史，新记录在前
func SearchHistoryHandler(c *gin.Context) {
	userID := GetCurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "需要认证"))
		return
	}

	history := historyService.List(userID)

	response := model.NewSuccessResponse(gin.H{
		"history": history,
		"total":   len(history),
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}

// ClearSearchHistoryHandler 清空当前用户的搜索历史
func ClearSearchHistoryHandler(c *gin.Context) {
	userID := GetCurrentUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, model.NewErrorResponse(401, "需要认证"))
		return
	}

	historyService.Clear(userID)

	response := model.NewSuccessResponse(gin.H{
		"message": "搜索历史已清空",
	})
	jsonData, _ := jsonutil.Marshal(response)
	c.Data(http.StatusOK, "application/json", jsonData)
}
