package chat

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"snowball/internal/llm"
	"snowball/internal/profile"
	"snowball/internal/util"

	"github.com/google/uuid"
)

// Sender 消息来源
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Message 会话中的一条消息
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	ImageURL  string
	IsEvent   bool
	Timestamp time.Time
}

// HasImage 是否附带图片卡片
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// RandomEvent 随机突发事件
type RandomEvent struct {
	ID          string
	Title       string
	Description string
	// Prompt 触发事件时发给模型的系统事件描述
	Prompt string
}

// randomEvents 突发事件库
var randomEvents = []RandomEvent{
	{
		ID:          "fever",
		Title:       "突发状况：体温升高",
		Description: "感觉身体热热的，好像发烧了...",
		Prompt:      "[SYSTEM EVENT: 用户突然发烧了 (Simulated Event). 请用安抚的语气询问体温，并给出物理降温的建议，同时鼓励孩子。]",
	},
	{
		ID:          "sadness",
		Title:       "心情雨天",
		Description: "看着窗外，突然觉得有点想家...",
		Prompt:      "[SYSTEM EVENT: 用户感到突然的悲伤和想家 (Simulated Event). 请讲一个简短的关于勇气和陪伴的暖心小故事来安慰用户。]",
	},
	{
		ID:          "appetite",
		Title:       "肚子饿了",
		Description: "肚子咕咕叫，但是不知道什么能吃...",
		Prompt:      "[SYSTEM EVENT: 用户饿了 (Simulated Event). 请列举3种适合白血病患儿吃的健康零食，并解释为什么它们是安全的。]",
	},
}

// 随机事件触发概率
const eventChance = 0.3

// 内置的图片占位请求标记，模型用它表达"给我配一张图"
var imageRequestPattern = regexp.MustCompile(`\[IMAGE_REQUEST:\s*(.*?)\]`)

// WelcomeText 开场白
const WelcomeText = "你好呀！我是小雪宝。这里是你的专属秘密基地。今天感觉怎么样？"

// Session 一次陪伴会话：消息历史、成长数据与回复加工
type Session struct {
	router   *llm.Router
	store    *profile.Store
	stats    *profile.Stats
	messages []Message
}

// NewSession 创建会话并载入成长数据
func NewSession(router *llm.Router, store *profile.Store) (*Session, error) {
	stats, err := store.LoadStats()
	if err != nil {
		return nil, err
	}

	s := &Session{router: router, store: store, stats: stats}
	s.append(Message{Sender: SenderBot, Text: WelcomeText})
	return s, nil
}

// Messages 返回全部消息
func (s *Session) Messages() []Message {
	return s.messages
}

// Stats 返回成长数据
func (s *Session) Stats() *profile.Stats {
	return s.stats
}

// History 以画像生成需要的形式导出对话历史（不含系统消息）
func (s *Session) History() []profile.HistoryEntry {
	var history []profile.HistoryEntry
	for _, msg := range s.messages {
		if msg.Sender == SenderSystem {
			continue
		}
		history = append(history, profile.HistoryEntry{
			Sender: string(msg.Sender),
			Text:   msg.Text,
		})
	}
	return history
}

// Ask 处理一轮用户输入：记录成长数据、取回回复并加工展示形态。
// 返回本轮新增的全部消息（成就公告、用户消息与机器人回复）。
func (s *Session) Ask(ctx context.Context, input string) []Message {
	start := len(s.messages)

	s.append(Message{Sender: SenderUser, Text: input})
	for _, announcement := range s.stats.RecordUserMessage(input) {
		s.append(Message{Sender: SenderSystem, Text: announcement, IsEvent: true})
	}

	reply := s.router.Ask(ctx, input)
	s.appendBotReply(reply)

	s.persistStats()
	return s.messages[start:]
}

// TriggerEvent 触发一个突发事件：插入事件公告并请求模型回应
func (s *Session) TriggerEvent(ctx context.Context, event RandomEvent) []Message {
	start := len(s.messages)

	s.append(Message{
		Sender:  SenderSystem,
		Text:    fmt.Sprintf("🎲 %s: %s", event.Title, event.Description),
		IsEvent: true,
	})

	reply := s.router.Ask(ctx, event.Prompt)
	s.appendBotReply(reply)

	if announcement := s.stats.RecordEventHandled(); announcement != "" {
		s.append(Message{Sender: SenderSystem, Text: announcement, IsEvent: true})
	}

	s.persistStats()
	return s.messages[start:]
}

// MaybeTriggerEvent 按概率触发一个随机突发事件，未触发时返回nil
func (s *Session) MaybeTriggerEvent(ctx context.Context) []Message {
	if rand.Float64() > eventChance {
		return nil
	}
	event := randomEvents[rand.Intn(len(randomEvents))]
	return s.TriggerEvent(ctx, event)
}

// appendBotReply 加工并追加机器人回复，图片展示解锁对应成就
func (s *Session) appendBotReply(reply *llm.Reply) {
	text, imageURL := ProcessReplyText(reply.Text)

	if imageURL != "" {
		if announcement := s.stats.RecordImageShown(); announcement != "" {
			s.append(Message{Sender: SenderSystem, Text: announcement, IsEvent: true})
		}
	}

	s.append(Message{Sender: SenderBot, Text: text, ImageURL: imageURL})
}

func (s *Session) append(msg Message) {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()
	s.messages = append(s.messages, msg)
}

func (s *Session) persistStats() {
	if err := s.store.SaveStats(s.stats); err != nil {
		util.Warnw("保存成长数据失败", map[string]interface{}{"error": err})
	}
}

// ProcessReplyText 把模型回复加工成展示形态，抽出要作为卡片展示的图片。
// 依次处理：内置图片占位请求、markdown 图片、裸露的图片URL。
func ProcessReplyText(text string) (string, string) {
	// 1. 图片占位请求：替换为占位图并附上说明
	if match := imageRequestPattern.FindStringSubmatch(text); match != nil {
		keyword := match[1]
		imageURL := fmt.Sprintf("https://picsum.photos/400/300?random=%d", time.Now().UnixMilli())
		text = strings.TrimSpace(imageRequestPattern.ReplaceAllString(text, ""))
		text += fmt.Sprintf("\n(小雪宝为你找到了一张关于 \"%s\" 的示意图)", keyword)
		return text, imageURL
	}

	// 2. markdown 图片：抽出第一张作为卡片，去掉正文中的标记
	if refs := llm.ScanMarkdownImages(text); len(refs) > 0 {
		imageURL := refs[0].URL
		text = strings.TrimSpace(replaceFirstMarkdownImage(text))
		return text, imageURL
	}

	// 3. 裸露的图片URL：保留正文，仅当整条回复就是URL时替换为提示
	if refs := llm.ScanBareImageURLs(text); len(refs) > 0 {
		imageURL := refs[0].URL
		if strings.TrimSpace(text) == imageURL {
			text = "这是你要的图片："
		}
		return text, imageURL
	}

	return text, ""
}

var firstMarkdownImagePattern = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)

func replaceFirstMarkdownImage(text string) string {
	replaced := false
	return firstMarkdownImagePattern.ReplaceAllStringFunc(text, func(match string) string {
		if replaced {
			return match
		}
		replaced = true
		return ""
	})
}

// RandomEvents 返回突发事件库
func RandomEvents() []RandomEvent {
	out := make([]RandomEvent, len(randomEvents))
	copy(out, randomEvents)
	return out
}
