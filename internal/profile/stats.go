package profile

import (
	"fmt"
	"strings"
)

// Achievement 一项可解锁的成就
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// 成就解锁时的勇气星奖励
const achievementStars = 5

// achievementsData 全部成就定义
var achievementsData = []Achievement{
	{ID: "first_hello", Title: "初次见面", Description: "发送你的第一条消息"},
	{ID: "curious_mind", Title: "好奇宝宝", Description: "询问关于\"白血病\"的知识"},
	{ID: "visual_learner", Title: "视觉探索", Description: "触发一次图片请求（如询问器官样子）"},
	{ID: "brave_hero", Title: "小小勇士", Description: "完成一次随机突发事件的处理"},
	{ID: "nutrition_expert", Title: "营养专家", Description: "询问关于饮食的建议"},
}

// Achievements 返回全部成就定义
func Achievements() []Achievement {
	out := make([]Achievement, len(achievementsData))
	copy(out, achievementsData)
	return out
}

// AchievementByID 按ID查找成就定义
func AchievementByID(id string) (Achievement, bool) {
	for _, a := range achievementsData {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Stats 用户成长数据
type Stats struct {
	Stars    int      `json:"stars"`
	Level    int      `json:"level"`
	Streak   int      `json:"streak"`
	Unlocked []string `json:"unlocked_achievements"`
}

// NewStats 创建初始成长数据
func NewStats() *Stats {
	return &Stats{Stars: 0, Level: 1, Streak: 1}
}

// HasUnlocked 判断成就是否已解锁
func (s *Stats) HasUnlocked(id string) bool {
	for _, unlocked := range s.Unlocked {
		if unlocked == id {
			return true
		}
	}
	return false
}

// Unlock 解锁一项成就并奖励勇气星。
// 已解锁或未知的成就ID不产生任何效果，返回的公告文本为空。
func (s *Stats) Unlock(id string) string {
	if s.HasUnlocked(id) {
		return ""
	}
	achievement, ok := AchievementByID(id)
	if !ok {
		return ""
	}

	s.Stars += achievementStars
	s.Unlocked = append(s.Unlocked, id)
	return fmt.Sprintf("🏆 解锁成就：%s！获得5颗勇气星！", achievement.Title)
}

// RecordUserMessage 记录一条用户消息：+1勇气星，并按内容解锁相关成就。
// 返回本次产生的成就公告文本。
func (s *Stats) RecordUserMessage(text string) []string {
	var announcements []string

	appendIf := func(msg string) {
		if msg != "" {
			announcements = append(announcements, msg)
		}
	}

	appendIf(s.Unlock("first_hello"))
	if strings.Contains(text, "白血病") {
		appendIf(s.Unlock("curious_mind"))
	}
	if strings.Contains(text, "吃") || strings.Contains(text, "食物") {
		appendIf(s.Unlock("nutrition_expert"))
	}

	s.Stars++
	return announcements
}

// RecordImageShown 记录一次图片展示
func (s *Stats) RecordImageShown() string {
	return s.Unlock("visual_learner")
}

// RecordEventHandled 记录一次突发事件处理完成
func (s *Stats) RecordEventHandled() string {
	return s.Unlock("brave_hero")
}
