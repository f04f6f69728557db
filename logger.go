package wayline

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/valyala/fasthttp"
)

// Custom log level for HTTP requests
const HTTPLevel = log.Level(1)

var (
	// Status code styles
	statusInfoStyle      = lipgloss.NewStyle().Background(lipgloss.Color("63")).Bold(true)  // 1xx
	statusSuccessStyle   = lipgloss.NewStyle().Background(lipgloss.Color("86")).Bold(true)  // 2xx
	statusRedirectStyle  = lipgloss.NewStyle().Background(lipgloss.Color("216")).Bold(true) // 3xx
	statusClientErrStyle = lipgloss.NewStyle().Background(lipgloss.Color("192")).Bold(true) // 4xx
	statusServerErrStyle = lipgloss.NewStyle().Background(lipgloss.Color("204")).Bold(true) // 5xx

	// HTTP method styles
	methodGetStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	methodPostStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("192")).Bold(true)
	methodPutStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	methodDeleteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true)
	methodDefaultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("219")).Bold(true)
)

// getStatusStyle returns the appropriate pre-created style for the status code
func getStatusStyle(status int) lipgloss.Style {
	switch {
	case status >= fasthttp.StatusContinue && status < fasthttp.StatusOK:
		return statusInfoStyle
	case status >= fasthttp.StatusOK && status < fasthttp.StatusMultipleChoices:
		return statusSuccessStyle
	case status >= fasthttp.StatusMultipleChoices && status < fasthttp.StatusBadRequest:
		return statusRedirectStyle
	case status >= fasthttp.StatusBadRequest && status < fasthttp.StatusInternalServerError:
		return statusClientErrStyle
	default:
		return statusServerErrStyle
	}
}

// getMethodStyle returns the appropriate pre-created style for the HTTP method
func getMethodStyle(method []byte) lipgloss.Style {
	switch string(method) {
	case fasthttp.MethodGet, fasthttp.MethodHead:
		return methodGetStyle
	case fasthttp.MethodPost:
		return methodPostStyle
	case fasthttp.MethodPut, fasthttp.MethodPatch:
		return methodPutStyle
	case fasthttp.MethodDelete:
		return methodDeleteStyle
	default:
		return methodDefaultStyle
	}
}

// setLoggerSettings configures the global logger with custom styles and
// output settings
func setLoggerSettings(settings *Settings) {
	styles := log.DefaultStyles()
	styles.Timestamp = lipgloss.NewStyle().Faint(true)
	styles.Values["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	styles.Levels[HTTPLevel] = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true).SetString("HTTP")

	log.SetStyles(styles)
	log.SetOutput(os.Stderr)

	if settings.LogTimeFormat == "" {
		settings.LogTimeFormat = "2006/01/02 15:04:05"
	}
	log.SetTimeFormat(settings.LogTimeFormat)

	if settings.LogPrefix != "" {
		log.SetPrefix(settings.LogPrefix)
	}

	if settings.LogReportCaller {
		log.SetReportCaller(true)
	}
}

// logHTTPTransaction records one request-response cycle with color-coded
// status, latency, method and path
func logHTTPTransaction(ctx *fasthttp.RequestCtx, latency time.Duration) {
	status := ctx.Response.StatusCode()
	method := ctx.Method()

	log.Logf(HTTPLevel, "%s| %9s | %s %q",
		getStatusStyle(status).Width(5).Align(lipgloss.Center).Render(fmt.Sprint(status)),
		latency,
		getMethodStyle(method).Render(fmt.Sprintf("%-7s", method)),
		ctx.Path(),
	)
}
