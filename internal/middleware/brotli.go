package middleware

import (
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

type brotliWriter struct {
	gin.ResponseWriter
	writer     *brotli.Writer
	compressed bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if !bw.compressed {
		bw.compressed = true
		bw.ResponseWriter.Header().Set("Content-Encoding", "br")
		bw.ResponseWriter.Header().Del("Content-Length")
	}
	return bw.writer.Write(data)
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Brotli compresses responses for clients that accept it. WebSocket upgrades
// are skipped — a hijacked connection must not be wrapped.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isUpgrade(c) || !acceptsBrotli(c) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			writer:         brotli.NewWriter(c.Writer),
		}
		c.Writer = bw
		defer func() {
			if bw.compressed {
				bw.writer.Close()
			}
		}()

		c.Next()
	}
}

func isUpgrade(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Connection")), "upgrade")
}

func acceptsBrotli(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept-Encoding"), "br")
}
