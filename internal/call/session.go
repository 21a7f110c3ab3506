package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"snowball/internal/config"
	"snowball/internal/llm"
	"snowball/internal/util"
)

// State 通话状态
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateEnded      State = "ended"
	StateError      State = "error"
)

// Event 实时会话推送的一个事件
type Event struct {
	// Interrupted 为真表示模型被用户打断，所有已排期音频应立即停止
	Interrupted bool
	// Audio 为模型输出的一段PCM音频
	Audio []byte
	// AudioDuration 该段音频的时长
	AudioDuration time.Duration
	// Closed 为真表示会话已由对端关闭
	Closed bool
	// Err 非nil表示会话出错
	Err error
}

// LiveSession 已建立的实时语音会话
type LiveSession interface {
	// SendAudio 上行一段麦克风PCM音频
	SendAudio(ctx context.Context, pcm []byte) error
	// Events 下行事件流，会话结束后关闭
	Events() <-chan Event
	// Close 关闭会话
	Close() error
}

// DialOptions 建立实时会话的参数
type DialOptions struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// Dialer 建立实时语音会话的拨号器
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (LiveSession, error)
}

// Session 一次语音通话。
// 只有 Gemini 提供商支持通话，其余提供商直接报错。
type Session struct {
	dialer   Dialer
	statusFn func(State)
	queue    *PlaybackQueue

	mu      sync.Mutex
	state   State
	live    LiveSession
	started time.Time
}

// NewSession 创建通话会话
func NewSession(dialer Dialer, onStatus func(State)) *Session {
	if onStatus == nil {
		onStatus = func(State) {}
	}
	return &Session{
		dialer:   dialer,
		statusFn: onStatus,
		queue:    NewPlaybackQueue(),
		state:    StateIdle,
	}
}

// Start 发起通话并开始消费事件流，会话结束后返回
func (s *Session) Start(ctx context.Context, cfg *config.AppConfig) error {
	if llm.ProviderKind(cfg.Provider.Active) != llm.KindGemini {
		s.setState(StateError)
		return util.NewError(util.ErrCodeCallNotSupported, "通话功能目前仅支持 Gemini 模型")
	}

	s.setState(StateConnecting)

	opts := DialOptions{
		Model:             LiveModelOr(cfg.Gemini.LiveModel),
		Voice:             VoiceForTone(cfg.Persona.VoiceTone),
		SystemInstruction: llm.SystemInstructionOr(cfg.Persona.SystemInstruction),
	}
	util.Infow("正在发起语音通话", map[string]interface{}{
		"model": opts.Model,
		"voice": opts.Voice,
	})

	live, err := s.dialer.Dial(ctx, opts)
	if err != nil {
		s.setState(StateError)
		return util.WrapError(util.ErrCodeCallFailed, "启动通话失败", err)
	}

	s.mu.Lock()
	s.live = live
	s.started = time.Now()
	s.mu.Unlock()

	s.setState(StateActive)
	return s.pump(ctx, live)
}

// pump 消费会话事件直到结束
func (s *Session) pump(ctx context.Context, live LiveSession) error {
	for {
		select {
		case <-ctx.Done():
			s.End()
			return util.WrapError(util.ErrCodeContextCanceled, "通话被取消", ctx.Err())
		case event, ok := <-live.Events():
			if !ok {
				s.setState(StateEnded)
				return nil
			}

			switch {
			case event.Err != nil:
				s.setState(StateError)
				return util.WrapError(util.ErrCodeCallFailed, "通话出错", event.Err)
			case event.Closed:
				s.setState(StateEnded)
				return nil
			case event.Interrupted:
				// 用户打断，停掉所有已排期音频并重置游标
				stopped := s.queue.Interrupt()
				util.Debugw("模型被打断，清空播放队列", map[string]interface{}{
					"stopped": stopped,
				})
			case len(event.Audio) > 0:
				now := time.Since(s.startedAt())
				s.queue.Schedule(now, event.AudioDuration)
			}
		}
	}
}

// End 结束通话：停止所有播放并关闭会话，返回通话时长
func (s *Session) End() time.Duration {
	s.mu.Lock()
	live := s.live
	s.live = nil
	started := s.started
	s.mu.Unlock()

	s.queue.Interrupt()
	if live != nil {
		if err := live.Close(); err != nil {
			util.Warnw("关闭通话会话失败", map[string]interface{}{"error": err})
		}
	}
	s.setState(StateEnded)

	if started.IsZero() {
		return 0
	}
	return time.Since(started)
}

// State 返回当前通话状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Queue 返回播放排期，用于展示在播状态
func (s *Session) Queue() *PlaybackQueue {
	return s.queue
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.statusFn(state)
}

func (s *Session) startedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// FormatDuration 将通话时长格式化为 mm:ss
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
