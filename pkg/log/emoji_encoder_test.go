package log

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestStatusEmoji(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "🟢"},
		{204, "🟢"},
		{302, "🟡"},
		{403, "🟠"},
		{422, "🟠"},
		{503, "🔴"},
	}

	for _, tt := range tests {
		if got := statusEmoji(tt.status); got != tt.want {
			t.Errorf("statusEmoji(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestEmojiMap(t *testing.T) {
	required := []string{"request", "error", "selection", "circuit", "provider", "scheduler", "audit"}

	for _, logType := range required {
		if emoji, ok := emojiMap[logType]; !ok {
			t.Errorf("emojiMap missing required type: %s", logType)
		} else if emoji == "" {
			t.Errorf("emojiMap[%s] is empty", logType)
		}
	}
}

func TestGetEmojiMap(t *testing.T) {
	mapCopy := GetEmojiMap()
	if len(mapCopy) != len(emojiMap) {
		t.Errorf("GetEmojiMap returned map with length %d, want %d", len(mapCopy), len(emojiMap))
	}

	mapCopy["test"] = "🧪"
	if _, ok := emojiMap["test"]; ok {
		t.Error("Modifying GetEmojiMap result should not affect original emojiMap")
	}
}

func TestEmojiConsoleEncoder_EncodeEntry(t *testing.T) {
	enc := NewEmojiConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg", LineEnding: "\n"})

	tests := []struct {
		name   string
		level  zapcore.Level
		fields []zapcore.Field
		want   string
	}{
		{name: "status wins over type", level: zapcore.InfoLevel, fields: []zapcore.Field{zap.Int("status", 503), zap.String("type", "selection")}, want: "🔴 msg"},
		{name: "type wins over level", level: zapcore.ErrorLevel, fields: []zapcore.Field{zap.String("type", "circuit")}, want: "🔌 msg"},
		{name: "level fallback", level: zapcore.WarnLevel, want: "⚠️ msg"},
		{name: "unknown type falls back to level", level: zapcore.DebugLevel, fields: []zapcore.Field{zap.String("type", "nope")}, want: "🐛 msg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := enc.EncodeEntry(zapcore.Entry{Level: tt.level, Time: time.Now(), Message: "msg"}, tt.fields)
			if err != nil {
				t.Fatalf("EncodeEntry() error = %v", err)
			}
			defer buf.Free()

			if got := buf.String(); !strings.HasPrefix(got, tt.want) {
				t.Errorf("EncodeEntry() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestEmojiConsoleEncoder_Clone(t *testing.T) {
	enc := NewEmojiConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	if _, ok := enc.Clone().(*EmojiConsoleEncoder); !ok {
		t.Error("Clone() should return an *EmojiConsoleEncoder")
	}
}
