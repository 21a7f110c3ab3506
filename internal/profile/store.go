package profile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"snowball/internal/util"
)

const (
	statsFileName   = "stats.json"
	profileFileName = "profile.json"
	historyFileName = "history.json"
)

// Store 成长数据与档案的本地持久化
type Store struct {
	dir string
}

// NewStore 创建使用默认数据目录的存储
func NewStore() (*Store, error) {
	dir := util.HomeDataDir()
	return NewStoreAt(dir)
}

// NewStoreAt 创建使用指定目录的存储
func NewStoreAt(dir string) (*Store, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, util.WrapError(util.ErrCodeProfileStoreFailed, "创建数据目录失败", err)
	}
	return &Store{dir: dir}, nil
}

// LoadStats 读取成长数据，文件不存在时返回初始数据
func (s *Store) LoadStats() (*Stats, error) {
	stats := NewStats()
	if err := s.load(statsFileName, stats); err != nil {
		return nil, err
	}
	if stats.Level < 1 {
		stats.Level = 1
	}
	if stats.Streak < 1 {
		stats.Streak = 1
	}
	return stats, nil
}

// SaveStats 保存成长数据
func (s *Store) SaveStats(stats *Stats) error {
	return s.save(statsFileName, stats)
}

// LoadProfile 读取成长档案，不存在时返回nil
func (s *Store) LoadProfile() (*UserProfile, error) {
	path := filepath.Join(s.dir, profileFileName)
	if !util.FileExists(path) {
		return nil, nil
	}

	var profile UserProfile
	if err := s.load(profileFileName, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile 保存成长档案
func (s *Store) SaveProfile(profile *UserProfile) error {
	return s.save(profileFileName, profile)
}

// LoadHistory 读取最近一次对话历史，不存在时返回nil
func (s *Store) LoadHistory() ([]HistoryEntry, error) {
	var history []HistoryEntry
	if err := s.load(historyFileName, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// SaveHistory 保存对话历史，供离线生成档案使用
func (s *Store) SaveHistory(history []HistoryEntry) error {
	return s.save(historyFileName, history)
}

func (s *Store) load(name string, target interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return util.WrapError(util.ErrCodeProfileStoreFailed, "读取数据文件失败", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return util.WrapError(util.ErrCodeProfileStoreFailed, "解析数据文件失败", err)
	}
	return nil
}

func (s *Store) save(name string, source interface{}) error {
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return util.WrapError(util.ErrCodeProfileStoreFailed, "序列化数据失败", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return util.WrapError(util.ErrCodeProfileStoreFailed, "写入数据文件失败", err)
	}
	return nil
}
