package fakeapi

import (
	"bytes"
	"io"
	"time"

	"yotta-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 同时写入 gin.ResponseWriter 和内部 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// requestLogger 记录每个请求并累计调用次数。multipart 请求体不记录。
func (b *Backend) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		b.countCall()

		var requestBody []byte
		isMultipart := c.ContentType() == gin.MIMEMultipartPOSTForm
		if c.Request.Body != nil && !isMultipart {
			requestBody, _ = io.ReadAll(c.Request.Body)
			// 重新放回请求体，后续处理函数才能读取
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		log.Infow("fake backend request",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", string(requestBody),
			"responseBody", blw.body.String(),
		)
	}
}
