package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/setuper/internal/ir"
)

func descriptor(action string, pairs ...ir.IRPair) ir.IRObject {
	obj := ir.IRObject{
		"action":   ir.IRString(action),
		"event":    ir.IRString("setup"),
		"priority": ir.IRInt(0),
	}
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

func TestLoad(t *testing.T) {
	v, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ir.SchemaVersion, v.Version())
	assert.Equal(t, []string{
		"append", "confirm", "copy", "directory", "dump", "group", "insert", "mode",
		"move", "owner", "remove", "rename", "replace", "secret", "select", "set",
		"symlink", "write",
	}, v.Actions())
	assert.Contains(t, Source(), "#Actions")
}

func TestValidateAccepts(t *testing.T) {
	v := MustLoad()

	valid := []ir.IRObject{
		descriptor("write", ir.O("message", ir.IRString("hi"))),
		descriptor("write", ir.O("message", ir.IRString("hi")), ir.O("verbose", ir.IRString("debug"))),
		descriptor("set", ir.O("variable", ir.IRString("v")), ir.O("value", ir.IRNull{})),
		descriptor("set", ir.O("variable", ir.IRString("v")), ir.O("value", ir.Strings("a", "b"))),
		descriptor("insert",
			ir.O("message", ir.IRString("Name?")),
			ir.O("variable", ir.IRString("name")),
			ir.O("default", ir.IRNull{}),
			ir.O("required", ir.IRBool(true)),
			ir.O("validator", ir.Strings("setup::trim", "setup::lower"))),
		descriptor("select",
			ir.O("message", ir.IRString("License?")),
			ir.O("variable", ir.IRString("license")),
			ir.O("choices", ir.IRObject{"mit": ir.IRString("MIT")}),
			ir.O("default", ir.IRString("mit"))),
		descriptor("select",
			ir.O("message", ir.IRString("Pick")),
			ir.O("variable", ir.IRString("pick")),
			ir.O("choices", ir.Strings("a", "b")),
			ir.O("multiple", ir.IRBool(true))),
		descriptor("directory", ir.O("path", ir.Strings("a", "b"))),
		descriptor("symlink", ir.O("source", ir.IRString("a")), ir.O("target", ir.Strings("b", "c"))),
		descriptor("owner", ir.O("path", ir.IRString("a")), ir.O("owner", ir.IRInt(1000))),
		descriptor("mode", ir.O("path", ir.IRString("a")), ir.O("mode", ir.IRString("0755"))),
		descriptor("dump", ir.O("file", ir.IRString("a"))),
		descriptor("replace",
			ir.O("file", ir.IRString("src/**/*.php")),
			ir.O("pattern", ir.IRString("/Foo/")),
			ir.O("replace", ir.IRString("Bar"))),
	}

	for _, d := range valid {
		t.Run(string(d["action"].(ir.IRString)), func(t *testing.T) {
			assert.NoError(t, v.Validate(d))
		})
	}
}

func TestValidateRejects(t *testing.T) {
	v := MustLoad()

	tests := []struct {
		name string
		desc ir.IRObject
		path string
	}{
		{"missing required field", descriptor("write"), "message"},
		{"wrong type", descriptor("write", ir.O("message", ir.IRInt(3))), "message"},
		{"unknown field", descriptor("write", ir.O("message", ir.IRString("x")), ir.O("colour", ir.IRString("red"))), "colour"},
		{"bad verbosity", descriptor("write", ir.O("message", ir.IRString("x")), ir.O("verbose", ir.IRString("loud"))), "verbose"},
		{"empty path", descriptor("directory", ir.O("path", ir.IRString(""))), "path"},
		{"empty event", descriptor("directory", ir.O("path", ir.IRString("a")), ir.O("event", ir.IRString(""))), "event"},
		{"priority not int", descriptor("directory", ir.O("path", ir.IRString("a")), ir.O("priority", ir.IRString("high"))), "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.desc)
			require.Error(t, err)

			var viol *Violation
			require.True(t, errors.As(err, &viol))
			assert.Equal(t, string(tt.desc["action"].(ir.IRString)), viol.Action)
			assert.Contains(t, viol.Path, tt.path)
			assert.NotEmpty(t, viol.Message)
		})
	}
}

func TestValidateUnknownAction(t *testing.T) {
	err := MustLoad().Validate(descriptor("teleport"))

	var viol *Violation
	require.True(t, errors.As(err, &viol))
	assert.Equal(t, "action", viol.Path)
	assert.Contains(t, viol.Message, "teleport")
}

func TestValidateMissingAction(t *testing.T) {
	err := MustLoad().Validate(ir.IRObject{"event": ir.IRString("setup"), "priority": ir.IRInt(0)})

	var viol *Violation
	require.True(t, errors.As(err, &viol))
	assert.Equal(t, "action: action must be a non-empty string", viol.Error())
}
