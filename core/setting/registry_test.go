package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinition_Normalize(t *testing.T) {
	reminder, _ := Lookup(VisitReminderLeadHours)
	autoApply, _ := Lookup(ConversionAutoApply)
	tz, _ := Lookup(CompanyTimezone)

	tests := []struct {
		name    string
		def     Definition
		raw     interface{}
		want    string
		wantErr string
	}{
		{name: "int from json number", def: reminder, raw: float64(48), want: "48"},
		{name: "int from string", def: reminder, raw: " 12 ", want: "12"},
		{name: "int below min", def: reminder, raw: float64(0), wantErr: "must be between 1 and 168"},
		{name: "int above max", def: reminder, raw: "169", wantErr: "must be between 1 and 168"},
		{name: "int not a number", def: reminder, raw: "soon", wantErr: errInvalidInt.Error()},
		{name: "int fraction", def: reminder, raw: 1.5, wantErr: errInvalidInt.Error()},
		{name: "bool", def: autoApply, raw: false, want: "false"},
		{name: "bool from string", def: autoApply, raw: "TRUE", want: "true"},
		{name: "bool invalid", def: autoApply, raw: "yes", wantErr: errInvalidBool.Error()},
		{name: "timezone", def: tz, raw: "Africa/Kinshasa", want: "Africa/Kinshasa"},
		{name: "timezone unknown", def: tz, raw: "Mars/Olympus", wantErr: errInvalidZone.Error()},
		{name: "timezone empty", def: tz, raw: "", wantErr: errInvalidZone.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.def.Normalize(tt.raw)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefinition_Parse(t *testing.T) {
	maxBytes, _ := Lookup(BackupMaxBytes)
	assert.Equal(t, int64(5<<20), maxBytes.Parse(maxBytes.Default))
	assert.Equal(t, int64(5<<20), maxBytes.Parse("garbage"), "falls back to the default")

	_, ok := Lookup("lol.key")
	assert.False(t, ok)
}
