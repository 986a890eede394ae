package middleware

import (
	"compress/gzip"
	"strings"

	"github.com/gin-gonic/gin"
)

// gzipWriter starts the gzip stream on the first body write, so responses
// without a body (204, 304, aborted requests) go out untouched.
type gzipWriter struct {
	gin.ResponseWriter
	level  int
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	if g.writer == nil {
		h := g.Header()
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		w, err := gzip.NewWriterLevel(g.ResponseWriter, g.level)
		if err != nil {
			return 0, err
		}
		g.writer = w
	}
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

func (g *gzipWriter) close() error {
	if g.writer == nil {
		return nil
	}
	return g.writer.Close()
}

// CompressConfig represents compression configuration
type CompressConfig struct {
	Level int
	// Skip lists path prefixes that are never compressed.
	Skip []string
}

// DefaultCompressConfig returns default compression configuration
func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		Level: gzip.DefaultCompression,
		Skip:  []string{"/api/v1/health", "/metrics"},
	}
}

// Compress gzips responses for clients that send Accept-Encoding: gzip.
// Mounted on the display board and the questionnaire catalog, which are
// polled by every screen in the waiting room.
func Compress(config CompressConfig) gin.HandlerFunc {
	if config.Level == 0 {
		config.Level = gzip.DefaultCompression
	}
	return func(c *gin.Context) {
		for _, prefix := range config.Skip {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		c.Writer.Header().Add("Vary", "Accept-Encoding")
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		original := c.Writer
		gz := &gzipWriter{ResponseWriter: original, level: config.Level}
		c.Writer = gz
		defer func() {
			_ = gz.close()
			c.Writer = original
		}()

		c.Next()
	}
}
