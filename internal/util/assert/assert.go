// Package assert stops the program when a startup invariant does not hold.
package assert

import (
	"fmt"
	"github.com/sirupsen/logrus"
)

// exit is replaced in tests.
var exit = func(logger *logrus.Entry, msg string) {
	logger.Fatal(msg)
}

// fields pairs up key/value arguments; an odd trailing key gets an empty value.
func fields(data ...any) logrus.Fields {
	f := make(logrus.Fields, len(data)/2+1)
	for i := 0; i < len(data); i += 2 {
		key := fmt.Sprint(data[i])
		if i+1 < len(data) {
			f[key] = data[i+1]
		} else {
			f[key] = ""
		}
	}

	return f
}

func assert(logger *logrus.Entry, msg string, data ...any) {
	exit(logger.WithFields(fields(data...)), msg)
}

func NoError(logger *logrus.Entry, err error, msg string, data ...any) {
	if err != nil {
		data = append(data, "Error", err)
		assert(logger, msg, data...)
	}
}
