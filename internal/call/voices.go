package call

// 缺省的实时语音模型
const defaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// Gemini Live 预置音色:
// Puck (活泼/高音), Charon (低沉/自信), Kore (均衡), Fenrir (低沉/有力), Zephyr (平静)
var toneVoices = map[string]string{
	"standard": "Kore",
	"cute":     "Puck",
	"deep":     "Fenrir",
	"gentle":   "Zephyr",
}

// VoiceForTone 按配置的音色偏好选择预置语音，未知音色回退均衡音
func VoiceForTone(tone string) string {
	if voice, ok := toneVoices[tone]; ok {
		return voice
	}
	return "Kore"
}

// LiveModelOr 返回配置的实时语音模型，留空时使用缺省模型
func LiveModelOr(model string) string {
	if model != "" {
		return model
	}
	return defaultLiveModel
}
