package call

import (
	"sync"
	"time"
)

// PlaybackQueue 音频播放排期。
// 维护下一段音频的起播游标与在播片段集合，
// 被打断时立刻停掉所有片段并重置游标。
type PlaybackQueue struct {
	mu     sync.Mutex
	cursor time.Duration
	nextID int
	active map[int]struct{}
}

// NewPlaybackQueue 创建空的播放排期
func NewPlaybackQueue() *PlaybackQueue {
	return &PlaybackQueue{active: make(map[int]struct{})}
}

// Schedule 为一段音频安排起播时间。
// 起播点取游标与当前时刻的较大者，游标随之后移。
// 返回片段ID与起播时间。
func (q *PlaybackQueue) Schedule(now, duration time.Duration) (int, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	start := q.cursor
	if now > start {
		start = now
	}
	q.cursor = start + duration

	id := q.nextID
	q.nextID++
	q.active[id] = struct{}{}
	return id, start
}

// Finish 标记一段音频播放完成
func (q *PlaybackQueue) Finish(id int) {
	q.mu.Lock()
	delete(q.active, id)
	q.mu.Unlock()
}

// Interrupt 打断播放：清空在播集合并重置游标，返回被停掉的片段数
func (q *PlaybackQueue) Interrupt() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	stopped := len(q.active)
	q.active = make(map[int]struct{})
	q.cursor = 0
	return stopped
}

// ActiveCount 返回在播片段数
func (q *PlaybackQueue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}
