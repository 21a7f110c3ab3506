package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"snowball/internal/config"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// BubbleTeaModel 聊天界面模型
type BubbleTeaModel struct {
	// 组件
	viewport viewport.Model
	textarea textarea.Model

	// 状态
	ready      bool
	quitting   bool
	processing bool
	width      int
	height     int

	session *Session

	// 渲染器
	renderer *glamour.TermRenderer

	// 样式
	userStyle   lipgloss.Style
	botStyle    lipgloss.Style
	systemStyle lipgloss.Style
	imageStyle  lipgloss.Style
	inputStyle  lipgloss.Style
	helpStyle   lipgloss.Style
	statsStyle  lipgloss.Style
}

// chatProcessingMsg 表示正在等待回复
type chatProcessingMsg struct{}

// chatResponseMsg 携带一轮交互新增的消息
type chatResponseMsg struct {
	appended []Message
}

// eventMsg 携带随机事件产生的消息
type eventMsg struct {
	appended []Message
}

// NewBubbleTeaModel 创建聊天界面模型
func NewBubbleTeaModel(session *Session) (*BubbleTeaModel, error) {
	// 创建textarea
	ta := textarea.New()
	ta.Placeholder = "和小雪宝说点什么... (Ctrl+S 发送，Ctrl+C 退出)"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetKeys("enter")

	// 创建viewport
	vp := viewport.New(80, 20)
	vp.SetContent("")

	// 创建渲染器
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("创建Markdown渲染器失败: %w", err)
	}

	m := &BubbleTeaModel{
		viewport: vp,
		textarea: ta,
		session:  session,
		renderer: renderer,
		userStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff00")).
			Bold(true).
			MarginLeft(1),
		botStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ffff")).
			Bold(true).
			MarginLeft(1),
		systemStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffff00")).
			Italic(true).
			MarginLeft(1),
		imageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff88ff")).
			MarginLeft(2),
		inputStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginLeft(1),
		statsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffcc00")).
			Bold(true).
			MarginLeft(1),
	}

	m.updateViewport()
	return m, nil
}

// Init 初始化模型
func (m *BubbleTeaModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update 处理消息更新
func (m *BubbleTeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.width = msg.Width

		// 调整各组件大小
		headerHeight := 2
		helpHeight := 3
		inputHeight := 5
		viewportHeight := m.height - headerHeight - helpHeight - inputHeight - 2

		m.viewport.Width = m.width - 2
		m.viewport.Height = viewportHeight

		m.textarea.SetWidth(m.width - 4)
		m.textarea.SetHeight(3)

		if !m.ready {
			m.ready = true
		}

		m.updateViewport()

	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case msg.Type == tea.KeyCtrlS:
			// 发送消息
			return m.sendMessage()

		case msg.Type == tea.KeyCtrlU:
			m.viewport.LineUp(5)
			return m, nil

		case msg.Type == tea.KeyCtrlD:
			m.viewport.LineDown(5)
			return m, nil
		}

	case chatProcessingMsg:
		return m, nil

	case chatResponseMsg:
		m.processing = false
		m.updateViewport()
		// 回复后有概率冒出一个突发事件
		return m, m.maybeEvent()

	case eventMsg:
		if msg.appended != nil {
			m.updateViewport()
		}
		return m, nil
	}

	// 更新子组件
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

// View 渲染界面
func (m *BubbleTeaModel) View() string {
	if m.quitting {
		return "下次再来找小雪宝玩哦！\n"
	}

	if !m.ready {
		return "\n正在初始化..."
	}

	// 标题栏与成长数据
	stats := m.session.Stats()
	header := m.botStyle.Render("❄️  小雪宝 - 你的专属健康伙伴")
	statsLine := m.statsStyle.Render(fmt.Sprintf("⭐ 勇气星 %d   Lv.%d   连续 %d 天",
		stats.Stars, stats.Level, stats.Streak))

	// 消息区域
	messagesView := m.viewport.View()

	// 处理状态
	var statusLine string
	if m.processing {
		statusLine = m.systemStyle.Render("💭 小雪宝正在思考...")
	}

	// 输入区域
	inputArea := m.inputStyle.Render(m.textarea.View())

	// 帮助信息
	help := m.helpStyle.Render("Ctrl+S: 发送 | Ctrl+C: 退出 | Ctrl+U/D: 滚动")

	var sections []string
	sections = append(sections, header, statsLine, messagesView)
	if statusLine != "" {
		sections = append(sections, statusLine)
	}
	sections = append(sections, inputArea, help)

	return strings.Join(sections, "\n")
}

// updateViewport 更新视口内容
func (m *BubbleTeaModel) updateViewport() {
	var content strings.Builder

	maxWidth := m.width * 4 / 5
	if maxWidth <= 0 || maxWidth > 80 {
		maxWidth = 80
	}

	for i, msg := range m.session.Messages() {
		if i > 0 {
			content.WriteString("\n")
		}

		timestamp := msg.Timestamp.Format("15:04:05")

		switch msg.Sender {
		case SenderUser:
			header := m.userStyle.Render(fmt.Sprintf("我 [%s]:", timestamp))
			content.WriteString(header + "\n")

			bubble := lipgloss.NewStyle().
				Padding(0, 1).
				MarginLeft(1).
				Width(maxWidth).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00ff00"))
			content.WriteString(bubble.Render(msg.Text) + "\n")

		case SenderSystem:
			content.WriteString(m.systemStyle.Render(msg.Text) + "\n")

		default:
			header := m.botStyle.Render(fmt.Sprintf("小雪宝 [%s]:", timestamp))
			content.WriteString(header + "\n")

			bubble := lipgloss.NewStyle().
				Padding(0, 1).
				MarginLeft(1).
				Width(maxWidth).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00ffff"))

			rendered, err := m.renderer.Render(msg.Text)
			if err != nil {
				rendered = msg.Text
			}
			content.WriteString(bubble.Render(rendered) + "\n")

			if msg.HasImage() {
				content.WriteString(m.imageStyle.Render("🖼️  "+msg.ImageURL) + "\n")
			}
		}

		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

// sendMessage 发送消息
func (m *BubbleTeaModel) sendMessage() (tea.Model, tea.Cmd) {
	if m.processing {
		return m, nil
	}

	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	m.textarea.Reset()
	m.processing = true
	m.updateViewport()

	return m, tea.Batch(
		tea.Cmd(func() tea.Msg { return chatProcessingMsg{} }),
		m.processUserMessage(input),
	)
}

// processUserMessage 处理用户消息
func (m *BubbleTeaModel) processUserMessage(input string) tea.Cmd {
	return tea.Cmd(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		appended := m.session.Ask(ctx, input)
		return chatResponseMsg{appended: appended}
	})
}

// maybeEvent 回复后按概率触发随机突发事件
func (m *BubbleTeaModel) maybeEvent() tea.Cmd {
	return tea.Cmd(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		return eventMsg{appended: m.session.MaybeTriggerEvent(ctx)}
	})
}

// requestTimeout 单轮请求超时
func requestTimeout() time.Duration {
	if cfg := config.GetConfig(); cfg != nil && cfg.Provider.Timeout > 0 {
		return time.Duration(cfg.Provider.Timeout) * time.Second
	}
	return 2 * time.Minute
}

// RunChat 启动聊天界面
func RunChat(session *Session) error {
	model, err := NewBubbleTeaModel(session)
	if err != nil {
		return fmt.Errorf("初始化聊天界面失败: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}
