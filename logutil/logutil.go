package logutil

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

const maxRemainCnt = 3

// InitLog configures the standard logrus logger. An empty logfile logs to
// stderr, otherwise entries go to an hourly rotated file.
func InitLog(logfile string, level log.Level) error {
	log.SetLevel(level)

	if logfile == "" {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		return nil
	}

	hook, err := newLfsHook(logfile, maxRemainCnt)
	if err != nil {
		return err
	}
	log.AddHook(hook)
	log.SetOutput(ioutil.Discard)
	return nil
}

func newLfsHook(logName string, maxRemainCnt uint) (log.Hook, error) {
	writer, err := rotatelogs.New(
		logName+".%Y%m%d%H",
		// link to the newest file
		rotatelogs.WithLinkName(logName),
		rotatelogs.WithRotationTime(time.Hour),
		// only one of WithMaxAge and WithRotationCount may be set
		rotatelogs.WithRotationCount(maxRemainCnt),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "config local file system for logger %s", logName)
	}

	lfsHook := lfshook.NewHook(lfshook.WriterMap{
		log.DebugLevel: writer,
		log.InfoLevel:  writer,
		log.WarnLevel:  writer,
		log.ErrorLevel: writer,
		log.FatalLevel: writer,
		log.PanicLevel: writer,
	}, &log.TextFormatter{DisableColors: true})

	return lfsHook, nil
}

type kitLogger struct {
	logger *log.Logger
}

// NewKitLogger lets libraries that log through go-kit write to logger.
// The "level" and "msg" keys select the logrus level and message; the
// remaining pairs become fields.
func NewKitLogger(logger *log.Logger) kitlog.Logger {
	return kitLogger{logger: logger}
}

func (l kitLogger) Log(keyvals ...interface{}) error {
	fields := log.Fields{}
	level := log.InfoLevel
	msg := ""

	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		var val interface{} = "(MISSING)"
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}

		switch key {
		case "level":
			if lvl, err := log.ParseLevel(fmt.Sprint(val)); err == nil {
				level = lvl
			}
		case "msg":
			msg = fmt.Sprint(val)
		default:
			fields[key] = val
		}
	}

	l.logger.WithFields(fields).Log(level, msg)
	return nil
}
