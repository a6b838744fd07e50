// Package i18n holds the static user-facing strings, keyed by language code
// with a fallback to English for unrecognized codes or missing keys.
package i18n

const DefaultLang = "en"

const (
	KeyWelcome       = "welcome"
	KeyHelp          = "help"
	KeyReset         = "reset"
	KeyPDFReceived   = "pdf_received"
	KeyPDFTooLarge   = "pdf_too_large"
	KeyImageTooLarge = "image_too_large"
	KeyUnsupported   = "unsupported_file"
	KeyError         = "error_processing"
	KeyThinking      = "thinking"
	KeyImageReceived = "image_received"
)

var translations = map[string]map[string]string{
	"en": {
		KeyWelcome: "Welcome! I'm an AI assistant. I can help you with text, images, and PDFs. How can I assist you?",
		KeyHelp: "Here's what I can do:\n\n" +
			"- *Text Messages*: Chat with me in any language.\n" +
			"- *Image Uploads*: Send an image, and I'll analyze it.\n" +
			"- *PDF Uploads*: Send a PDF, and I'll answer questions about it.\n\n" +
			"Use /reset to clear our conversation history.",
		KeyReset:         "Our conversation history has been cleared.",
		KeyPDFReceived:   "Thank you for the PDF. I'm processing it now. Please ask me a question about its content.",
		KeyPDFTooLarge:   "The PDF file is too large. Please send a file smaller than 15 MB.",
		KeyImageTooLarge: "The image file is too large. Please send a file smaller than 10 MB.",
		KeyUnsupported:   "Sorry, I only support PDF and image files.",
		KeyError:         "Sorry, I encountered an error while processing your request. Please try again.",
		KeyThinking:      "...",
		KeyImageReceived: "I've received your image. What would you like to know about it?",
	},
	"zh": {
		KeyWelcome: "你好！我是一个 AI 助手，可以处理文字、图片和 PDF。有什么可以帮你？",
		KeyHelp: "我可以做这些：\n\n" +
			"- *文字消息*：用任何语言和我聊天。\n" +
			"- *图片*：发送图片，我来分析。\n" +
			"- *PDF*：发送 PDF，我来回答其中的问题。\n\n" +
			"使用 /reset 清除会话历史。",
		KeyReset:         "会话历史已清除。",
		KeyPDFReceived:   "已收到 PDF，正在处理。请向我提问它的内容。",
		KeyPDFTooLarge:   "PDF 文件太大，请发送小于 15 MB 的文件。",
		KeyImageTooLarge: "图片文件太大，请发送小于 10 MB 的文件。",
		KeyUnsupported:   "抱歉，我只支持 PDF 和图片文件。",
		KeyError:         "抱歉，处理你的请求时出错了，请重试。",
		KeyThinking:      "...",
		KeyImageReceived: "已收到图片。你想了解它的什么？",
	},
}

// T looks up a message by language and key. Unknown languages fall back to
// English; an unknown key falls back to the English value, then to "".
func T(lang, key string) string {
	m, ok := translations[lang]
	if !ok {
		m = translations[DefaultLang]
	}
	if s, ok := m[key]; ok {
		return s
	}
	return translations[DefaultLang][key]
}
