package profile

import (
	"testing"
)

func TestStoreStatsRoundTrip(t *testing.T) {
	store, err := NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	stats := NewStats()
	stats.RecordUserMessage("你好")
	stats.RecordImageShown()

	if err := store.SaveStats(stats); err != nil {
		t.Fatalf("保存成长数据失败: %v", err)
	}

	loaded, err := store.LoadStats()
	if err != nil {
		t.Fatalf("读取成长数据失败: %v", err)
	}
	if loaded.Stars != stats.Stars {
		t.Errorf("期望勇气星为 %d，实际为 %d", stats.Stars, loaded.Stars)
	}
	if len(loaded.Unlocked) != 2 {
		t.Errorf("期望已解锁 2 项成就，实际为 %v", loaded.Unlocked)
	}
}

func TestStoreLoadStatsDefault(t *testing.T) {
	store, err := NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	stats, err := store.LoadStats()
	if err != nil {
		t.Fatalf("读取成长数据失败: %v", err)
	}
	if stats.Stars != 0 || stats.Level != 1 || stats.Streak != 1 {
		t.Errorf("期望初始数据 stars=0 level=1 streak=1，实际为 %+v", stats)
	}
}

func TestStoreProfileRoundTrip(t *testing.T) {
	store, err := NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	// 不存在时返回nil
	profile, err := store.LoadProfile()
	if err != nil {
		t.Fatalf("读取档案失败: %v", err)
	}
	if profile != nil {
		t.Errorf("期望档案不存在时返回nil，实际为 %+v", profile)
	}

	saved := &UserProfile{
		Summary: "情绪稳定，对治疗有好奇心",
		Tags:    []string{"好奇", "勇敢", "喜爱画画"},
		Advice:  "多鼓励孩子提问，保持轻松的交流氛围。",
	}
	if err := store.SaveProfile(saved); err != nil {
		t.Fatalf("保存档案失败: %v", err)
	}

	loaded, err := store.LoadProfile()
	if err != nil {
		t.Fatalf("读取档案失败: %v", err)
	}
	if loaded == nil || loaded.Summary != saved.Summary || len(loaded.Tags) != 3 {
		t.Errorf("期望档案往返一致，实际为 %+v", loaded)
	}
}

func TestStoreHistoryRoundTrip(t *testing.T) {
	store, err := NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	history, err := store.LoadHistory()
	if err != nil {
		t.Fatalf("读取历史失败: %v", err)
	}
	if history != nil {
		t.Errorf("期望历史不存在时返回nil，实际为 %+v", history)
	}

	saved := []HistoryEntry{
		{Sender: "user", Text: "你好"},
		{Sender: "bot", Text: "你好呀"},
	}
	if err := store.SaveHistory(saved); err != nil {
		t.Fatalf("保存历史失败: %v", err)
	}

	loaded, err := store.LoadHistory()
	if err != nil {
		t.Fatalf("读取历史失败: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Sender != "user" || loaded[1].Text != "你好呀" {
		t.Errorf("期望历史往返一致，实际为 %+v", loaded)
	}
}
