package mockfs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
	"time"
)

// Logger is used to log information generated in the runtime.
type Logger struct {
	server *Server

	template *template.Template
	once     *sync.Once
	pool     *sync.Pool
	mutex    *sync.Mutex

	// Output is the destination of the log lines. Default is `os.Stdout`.
	Output io.Writer
}

// loggerLevel is the level of the `Logger`.
type loggerLevel uint8

// logger levels
const (
	lvlDebug loggerLevel = iota
	lvlInfo
	lvlWarn
	lvlError
)

// loggerLevelNames are the names of the logger levels.
var loggerLevelNames = []string{
	"DEBUG",
	"INFO",
	"WARN",
	"ERROR",
}

// newLogger returns a pointer of a new instance of the `Logger`.
func newLogger(s *Server) *Logger {
	return &Logger{
		server: s,
		once:   &sync.Once{},
		pool: &sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 256))
			},
		},
		mutex:  &sync.Mutex{},
		Output: os.Stdout,
	}
}

// DEBUG logs the msg with the optional extras at the DEBUG level.
func (l *Logger) DEBUG(msg string, extras ...map[string]interface{}) {
	l.log(lvlDebug, msg, extras...)
}

// INFO logs the msg with the optional extras at the INFO level.
func (l *Logger) INFO(msg string, extras ...map[string]interface{}) {
	l.log(lvlInfo, msg, extras...)
}

// WARN logs the msg with the optional extras at the WARN level.
func (l *Logger) WARN(msg string, extras ...map[string]interface{}) {
	l.log(lvlWarn, msg, extras...)
}

// ERROR logs the msg with the optional extras at the ERROR level.
func (l *Logger) ERROR(msg string, extras ...map[string]interface{}) {
	l.log(lvlError, msg, extras...)
}

// log writes a single line assembled from the lvl, the msg and the extras.
func (l *Logger) log(lvl loggerLevel, msg string, extras ...map[string]interface{}) {
	if !l.server.LoggerEnabled {
		return
	} else if lvl == lvlDebug && !l.server.DebugMode {
		return
	}

	l.once.Do(func() {
		l.template = template.Must(
			template.New("logger").Parse(l.server.LoggerFormat),
		)
	})

	data := map[string]interface{}{
		"app_name":     l.server.AppName,
		"time_rfc3339": time.Now().Format(time.RFC3339),
		"level":        loggerLevelNames[lvl],
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	buf := l.pool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		l.pool.Put(buf)
	}()

	if err := l.template.Execute(buf, data); err != nil {
		return
	}

	s := buf.Bytes()
	if i := len(s) - 1; i >= 0 && s[i] == '}' {
		// JSON header, splice the message and the extras in
		buf.Truncate(i)
		buf.WriteString(`,"message":`)

		mb, _ := json.Marshal(msg)
		buf.Write(mb)

		for _, extra := range extras {
			for k, v := range extra {
				kb, _ := json.Marshal(k)
				vb, err := json.Marshal(v)
				if err != nil {
					vb, _ = json.Marshal(fmt.Sprint(v))
				}

				buf.WriteByte(',')
				buf.Write(kb)
				buf.WriteByte(':')
				buf.Write(vb)
			}
		}

		buf.WriteByte('}')
	} else {
		// Text header
		buf.WriteByte(' ')
		buf.WriteString(msg)
		for _, extra := range extras {
			for k, v := range extra {
				fmt.Fprintf(buf, " %s=%v", k, v)
			}
		}
	}

	buf.WriteByte('\n')
	l.Output.Write(buf.Bytes())
}
