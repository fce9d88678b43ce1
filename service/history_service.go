package service

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"yunsou/config"
	"yunsou/model"
	"yunsou/util"
	jsonutil "yunsou/util/json"
	"yunsou/util/log"
)

// HistoryService 搜索历史服务。
// 按用户保存最近的搜索记录，超出上限淘汰最旧的
type HistoryService struct {
	mu          sync.RWMutex
	historyFile string
	maxEntries  int
	histories   map[string][]model.SearchHistoryEntry // 用户ID到历史列表，新记录在前
}

// NewHistoryService 创建搜索历史服务并加载已有记录
func NewHistoryService() *HistoryService {
	dataPath := "./data"
	maxEntries := 100
	if config.AppConfig != nil {
		dataPath = config.AppConfig.DataPath
		if config.AppConfig.HistoryMaxEntries > 0 {
			maxEntries = config.AppConfig.HistoryMaxEntries
		}
	}

	service := &HistoryService{
		historyFile: filepath.Join(dataPath, "search_history.json"),
		maxEntries:  maxEntries,
		histories:   make(map[string][]model.SearchHistoryEntry),
	}

	if err := service.load(); err != nil {
		log.Warnf("加载搜索历史失败: %v", err)
	}

	return service
}

// Record 记录一次搜索
func (s *HistoryService) Record(userID, keyword, sourceType string, resultCount int) {
	if userID == "" || keyword == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.SearchHistoryEntry{
		Keyword:     keyword,
		SourceType:  sourceType,
		ResultCount: resultCount,
		SearchedAt:  time.Now(),
	}

	history := append([]model.SearchHistoryEntry{entry}, s.histories[userID]...)
	if len(history) > s.maxEntries {
		history = history[:s.maxEntries]
	}
	s.histories[userID] = history

	if err := s.save(); err != nil {
		log.Warnf("保存搜索历史失败: %v", err)
	}
}

// List 返回用户的搜索历史，新记录在前
func (s *HistoryService) List(userID string) []model.SearchHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[userID]
	out := make([]model.SearchHistoryEntry, len(history))
	copy(out, history)
	return out
}

// Clear 清空用户的搜索历史
func (s *HistoryService) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.histories, userID)

	if err := s.save(); err != nil {
		log.Warnf("保存搜索历史失败: %v", err)
	}
}

func (s *HistoryService) load() error {
	if !util.FileExists(s.historyFile) {
		return nil
	}

	data, err := os.ReadFile(s.historyFile)
	if err != nil {
		return err
	}
	return jsonutil.Unmarshal(data, &s.histories)
}

func (s *HistoryService) save() error {
	data, err := jsonutil.MarshalIndent(s.histories, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFile(s.historyFile, data, 0644)
}
