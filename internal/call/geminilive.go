package call

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snowball/internal/util"
)

// Gemini Live API 的双向流接入点
const liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// 上行麦克风音频的格式
const micMIMEType = "audio/pcm;rate=16000"

// GeminiDialer 通过 WebSocket 建立 Gemini 实时语音会话
type GeminiDialer struct {
	apiKey   string
	endpoint string
	dialer   *websocket.Dialer
}

// NewGeminiDialer 创建 Gemini 实时会话拨号器
func NewGeminiDialer(apiKey string) *GeminiDialer {
	return &GeminiDialer{
		apiKey:   apiKey,
		endpoint: liveEndpoint,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

// liveSetup 会话建立消息
type liveSetup struct {
	Setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
			SpeechConfig       struct {
				VoiceConfig struct {
					PrebuiltVoiceConfig struct {
						VoiceName string `json:"voiceName"`
					} `json:"prebuiltVoiceConfig"`
				} `json:"voiceConfig"`
			} `json:"speechConfig"`
		} `json:"generationConfig"`
		SystemInstruction *livePart `json:"systemInstruction,omitempty"`
	} `json:"setup"`
}

type livePart struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

// liveServerMessage 服务端下行消息
type liveServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`
	ServerContent *struct {
		Interrupted  bool `json:"interrupted"`
		TurnComplete bool `json:"turnComplete"`
		ModelTurn    *struct {
			Parts []struct {
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"modelTurn"`
	} `json:"serverContent"`
}

// liveRealtimeInput 上行音频消息
type liveRealtimeInput struct {
	RealtimeInput struct {
		Audio struct {
			Data     string `json:"data"`
			MIMEType string `json:"mimeType"`
		} `json:"audio"`
	} `json:"realtimeInput"`
}

// Dial 建立实时会话：连接、发送setup并等待setupComplete
func (d *GeminiDialer) Dial(ctx context.Context, opts DialOptions) (LiveSession, error) {
	if d.apiKey == "" {
		return nil, util.NewError(util.ErrCodeAPIKeyMissing, "Gemini API密钥未配置")
	}

	endpoint := d.endpoint + "?key=" + url.QueryEscape(d.apiKey)
	conn, _, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, util.WrapError(util.ErrCodeNetworkFailed, "连接 Gemini Live 失败", err)
	}

	setup := liveSetup{}
	setup.Setup.Model = "models/" + opts.Model
	setup.Setup.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	setup.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = opts.Voice
	if opts.SystemInstruction != "" {
		instruction := &livePart{}
		instruction.Parts = []struct {
			Text string `json:"text"`
		}{{Text: opts.SystemInstruction}}
		setup.Setup.SystemInstruction = instruction
	}

	payload, err := json.Marshal(setup)
	if err != nil {
		conn.Close()
		return nil, util.WrapError(util.ErrCodeInternalErr, "构造setup消息失败", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, util.WrapError(util.ErrCodeNetworkFailed, "发送setup消息失败", err)
	}

	// 等待服务端确认会话建立
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, util.WrapError(util.ErrCodeNetworkFailed, "等待setup确认失败", err)
	}
	var first liveServerMessage
	if err := json.Unmarshal(raw, &first); err != nil || first.SetupComplete == nil {
		conn.Close()
		return nil, util.NewErrorWithDetails(util.ErrCodeInvalidResponse,
			"Gemini Live 会话建立失败", string(raw))
	}
	conn.SetReadDeadline(time.Time{})

	session := &geminiLiveSession{
		conn:   conn,
		events: make(chan Event, 16),
	}
	go session.readLoop()
	return session, nil
}

// geminiLiveSession 已建立的 Gemini 实时会话
type geminiLiveSession struct {
	conn   *websocket.Conn
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// SendAudio 上行一段16kHz PCM麦克风音频
func (s *geminiLiveSession) SendAudio(ctx context.Context, pcm []byte) error {
	input := liveRealtimeInput{}
	input.RealtimeInput.Audio.Data = base64.StdEncoding.EncodeToString(pcm)
	input.RealtimeInput.Audio.MIMEType = micMIMEType

	payload, err := json.Marshal(input)
	if err != nil {
		return util.WrapError(util.ErrCodeInternalErr, "构造音频消息失败", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return util.WrapError(util.ErrCodeNetworkFailed, "发送音频失败", err)
	}
	return nil
}

// Events 下行事件流
func (s *geminiLiveSession) Events() <-chan Event {
	return s.events
}

// Close 关闭会话
func (s *geminiLiveSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// readLoop 消费服务端消息并转换为事件，连接断开后关闭事件流
func (s *geminiLiveSession) readLoop() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.events <- Event{Closed: true}
			} else {
				s.events <- Event{Err: err}
			}
			return
		}

		var msg liveServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			util.Warnw("无法解析Live消息", map[string]interface{}{"error": err})
			continue
		}
		if msg.ServerContent == nil {
			continue
		}

		if msg.ServerContent.Interrupted {
			s.events <- Event{Interrupted: true}
		}
		if msg.ServerContent.ModelTurn != nil {
			for _, part := range msg.ServerContent.ModelTurn.Parts {
				if part.InlineData == nil {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					util.Warnw("无法解码音频数据", map[string]interface{}{"error": err})
					continue
				}
				s.events <- Event{
					Audio:         pcm,
					AudioDuration: pcmDuration(pcm, part.InlineData.MIMEType),
				}
			}
		}
	}
}

// pcmDuration 根据采样率计算一段16位单声道PCM的时长
func pcmDuration(pcm []byte, mimeType string) time.Duration {
	rate := 24000
	if idx := strings.Index(mimeType, "rate="); idx >= 0 {
		if parsed, err := strconv.Atoi(mimeType[idx+len("rate="):]); err == nil && parsed > 0 {
			rate = parsed
		}
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// DialerFor 返回指定提供商的拨号器，目前只有 Gemini 支持实时语音
func DialerFor(provider, apiKey string) (Dialer, error) {
	if provider != "gemini" {
		return nil, util.NewError(util.ErrCodeCallNotSupported, "通话功能目前仅支持 Gemini 模型")
	}
	return NewGeminiDialer(apiKey), nil
}
