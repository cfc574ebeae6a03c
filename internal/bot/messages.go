package bot

import (
	"fmt"
	"unicode/utf8"

	"rmbot/internal/domain"
)

// Telegram rejects texts over 4096 characters; leave room for the suffix.
const maxMessageLen = 4000

const (
	msgProcessing  = "⏳ Processing article..."
	msgDownloading = "📥 Downloading article..."
	msgConverting  = "📝 Converting to EPUB..."
	msgUploading   = "📤 Uploading to reMarkable..."

	msgInvalidURL   = "❌ Invalid URL. Please send a valid article link."
	msgUnauthorized = "⛔ Unauthorized. Your user ID is not in the allow list."
	msgUnknownCmd   = "Unknown command. Type /help for available commands."
	msgInstructions = "Please send me an article URL to convert and upload to your reMarkable.\n\n" +
		"Use /help for more information."

	msgStatusOK       = "✅ Bot is operational!\n✅ reMarkable connection: OK"
	msgStatusDegraded = "⚠️ Bot is running but reMarkable connection failed"
)

const welcomeText = `🎉 Welcome to Telegram → reMarkable Bot!

📚 How to use:
1. Share any article link with me
2. I'll extract the content and convert it to EPUB
3. Upload it to your reMarkable tablet
4. Read it on your tablet!

Just send me a URL to get started.

Commands:
/start - Show this message
/help - Show help
/status - Check bot status`

func helpText(folder string) string {
	return fmt.Sprintf(`📖 Help

Send me any article URL and I'll:
1. Extract the article content
2. Convert it to EPUB format
3. Upload to your reMarkable tablet

The article will appear in the %q folder on your tablet.

Supported sites:
✅ Substack
✅ Medium
✅ Most blogs and news sites

Tips:
• Make sure your reMarkable is connected to WiFi
• Sync your tablet to see new articles
• Articles are uploaded to %s`, folder, folder)
}

func statusText(s domain.SyncStatus) string {
	switch s.State {
	case domain.SyncOperational:
		return msgStatusOK
	case domain.SyncDegraded:
		if s.Diagnostic != "" {
			return msgStatusDegraded + "\n\n" + s.Diagnostic
		}
		return msgStatusDegraded
	default:
		return "❌ Error checking status: " + s.Diagnostic
	}
}

func successText(article *domain.Article, folder string) string {
	return fmt.Sprintf("✅ Success!\n\n📖 %s\n✍️ By %s\n\nYour article is now on your reMarkable tablet in the %q folder!",
		article.Title, article.Author, folder)
}

func uploadFailedText(diagnostic string) string {
	if diagnostic == "" {
		return "❌ Failed to upload to reMarkable. Please check the logs."
	}
	return "❌ Failed to upload to reMarkable:\n" + diagnostic + "\n\nPlease check the logs."
}

func errorText(err error) string {
	return fmt.Sprintf("❌ Error processing article:\n%v\n\nPlease try another article or check if the URL is accessible.", err)
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	const suffix = "\n… (truncated)"
	runes := []rune(s)
	return string(runes[:n-utf8.RuneCountInString(suffix)]) + suffix
}
