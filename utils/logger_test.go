/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerIsRegisteredOnce(t *testing.T) {
	a := NewLogger("UTILS_TEST")
	b := NewLogger("UTILS_TEST")
	assert.Same(t, a, b)
}

func TestSetLoggerLevel(t *testing.T) {
	l := NewLogger("UTILS_LEVEL")
	require.True(t, SetLoggerLevel("UTILS_LEVEL", "error"))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
	assert.False(t, SetLoggerLevel("UTILS_MISSING", "debug"))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		" WARN ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestConsoleFormatterIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("UTILS_FMT")
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)

	l.WithField("op", "create").Info("hello")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "op=create")
	assert.Contains(t, out, "UTILS_FMT")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("GENDAO_TEST_STR", "value")
	t.Setenv("GENDAO_TEST_BOOL", "true")
	assert.Equal(t, "value", EnvDefaultString("GENDAO_TEST_STR", "def"))
	assert.Equal(t, "def", EnvDefaultString("GENDAO_TEST_UNSET", "def"))
	assert.True(t, EnvDefaultBool("GENDAO_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("GENDAO_TEST_UNSET", true))
}
