package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorTime      = "\x1b[38;5;107m" // mid green
	colorComponent = "\x1b[38;5;208m" // warm orange
	colorID        = "\x1b[38;5;109m" // blue-green
	colorNumber    = "\x1b[38;5;108m" // bright green
	colorFg        = "\x1b[38;5;223m" // soft beige
	colorWarn      = "\x1b[38;5;179m"
	colorWarnBg    = "\x1b[48;5;58m"
	colorErr       = "\x1b[38;5;167m"
	colorErrBg     = "\x1b[48;5;52m"
)

var bufferPool = buffer.NewPool()

// minimalEncoder is a calm, compact console encoder.
// Format: "13:04:35  batch  Row rendered  #3 Acme gemini-2.5-pro 1840ms"
type minimalEncoder struct {
	zapcore.Encoder // Embedded for field accumulation via With()
	color           bool
}

func newMinimalEncoder(color bool) *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		color:   color,
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone(), color: enc.color}
}

func (enc *minimalEncoder) paint(color, s string) string {
	if !enc.color || s == "" {
		return s
	}
	return color + s + colorReset
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(enc.paint(colorTime, ent.Time.Format("15:04:05")))

	// Level is only shown for WARN and above
	if ent.Level > zapcore.InfoLevel || ent.Level == zapcore.DebugLevel {
		final.AppendString("  ")
		final.AppendString(enc.levelString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(colorComponent, abbreviateName(ent.LoggerName)))
	}

	final.AppendString("  ")
	final.AppendString(enc.paint(colorFg, ent.Message))

	if values := enc.fieldValues(fields); values != "" {
		final.AppendString("  ")
		final.AppendString(values)
	}

	final.AppendString("\n")
	return final, nil
}

func (enc *minimalEncoder) levelString(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.WarnLevel:
		if !enc.color {
			return "WARN"
		}
		return colorBold + colorWarnBg + colorWarn + "WARN" + colorReset
	default:
		if !enc.color {
			return level.CapitalString()
		}
		return colorBold + colorErrBg + colorErr + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens component names: batch -> batch, ai.invoker -> a.invoker
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// fieldValues renders the handful of fields worth showing on a console line.
// Everything else stays in the JSON file sink.
func (enc *minimalEncoder) fieldValues(fields []zapcore.Field) string {
	var values []string
	var errText string

	for _, field := range fields {
		val := fieldValue(field)
		if val == "" {
			continue
		}
		switch field.Key {
		case FieldRow:
			values = append(values, enc.paint(colorID, "#"+val))
		case FieldRowID, FieldAnalysisType, FieldModel, FieldStep, FieldFile:
			values = append(values, enc.paint(colorID, val))
		case FieldDurationMS:
			values = append(values, enc.paint(colorNumber, val)+"ms")
		case FieldCount, FieldAttempt:
			values = append(values, enc.paint(colorNumber, val))
		case FieldError:
			errText = val
		}
	}

	if errText != "" {
		values = append(values, enc.paint(colorErr, errText))
	}
	return strings.Join(values, " ")
}
