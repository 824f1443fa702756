package normalize

// FilterConfig carries the scope and blacklists the URL Filter (§4.2)
// checks admission against. Built once per crawl from config.Config and
// passed down unchanged.
type FilterConfig struct {
	AssetExtensionBlacklist []string
	SubstringBlacklist      []string
}

// DefaultAssetExtensionBlacklist matches images, stylesheets, scripts,
// archives, and documents (including PDFs, which are still fetched by the
// Fetcher but bypass HTML extraction per §4.8).
func DefaultAssetExtensionBlacklist() []string {
	return []string{
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg", ".ico",
		".css", ".js", ".mjs",
		".zip", ".tar", ".gz", ".rar", ".7z",
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
		".mp3", ".mp4", ".avi", ".mov", ".wav",
		".woff", ".woff2", ".ttf", ".eot",
	}
}

// DefaultSubstringBlacklist matches authentication/commerce flows and
// non-navigable URI schemes embedded in an href.
func DefaultSubstringBlacklist() []string {
	return []string{
		"login", "logout", "signin", "admin", "dashboard",
		"cart", "checkout", "payment",
		"wp-admin", "wp-login",
		"javascript:", "mailto:", "tel:",
	}
}

func NewFilterConfig() FilterConfig {
	return FilterConfig{
		AssetExtensionBlacklist: DefaultAssetExtensionBlacklist(),
		SubstringBlacklist:      DefaultSubstringBlacklist(),
	}
}
