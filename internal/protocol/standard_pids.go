package protocol

// StandardPID describes a built-in SAE J1979 Mode 01 PID: the table
// shape mirrors the retrieved firmware's obd2_standard_pids.c (name,
// bitfield, scale, unit) so a config file can reference a PID by name
// without repeating its bitfield layout. A config entry may still
// override any field.
type StandardPID struct {
	Name   string
	Unit   string
	Layout FieldLayout
}

// StandardPIDs is the built-in catalog of common Mode 01 PIDs. Names
// follow the "<hex-pid>-<label>" convention used throughout spec §8's
// scenarios (e.g. "0C-EngineRPM").
var StandardPIDs = map[string]StandardPID{
	"04-EngineLoad": {
		Name: "04-EngineLoad", Unit: "%",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 100.0 / 255.0, Offset: 0, Min: 0, Max: 100},
	},
	"05-CoolantTemp": {
		Name: "05-CoolantTemp", Unit: "C",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 1, Offset: -40, Min: -40, Max: 215},
	},
	"0C-EngineRPM": {
		Name: "0C-EngineRPM", Unit: "rpm",
		Layout: FieldLayout{BitStart: 31, BitLength: 16, Scale: 0.25, Offset: 0, Min: 0, Max: 16384},
	},
	"0D-VehicleSpeed": {
		Name: "0D-VehicleSpeed", Unit: "km/h",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 1, Offset: 0, Min: 0, Max: 255},
	},
	"0E-TimingAdvance": {
		Name: "0E-TimingAdvance", Unit: "deg",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 0.5, Offset: -64, Min: -64, Max: 63.5},
	},
	"0F-IntakeAirTemp": {
		Name: "0F-IntakeAirTemp", Unit: "C",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 1, Offset: -40, Min: -40, Max: 215},
	},
	"10-MAF": {
		Name: "10-MAF", Unit: "g/s",
		Layout: FieldLayout{BitStart: 24, BitLength: 16, Scale: 0.01, Offset: 0, Min: 0, Max: 655.35},
	},
	"11-ThrottlePosition": {
		Name: "11-ThrottlePosition", Unit: "%",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 100.0 / 255.0, Offset: 0, Min: 0, Max: 100},
	},
	"2F-FuelLevel": {
		Name: "2F-FuelLevel", Unit: "%",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 100.0 / 255.0, Offset: 0, Min: 0, Max: 100},
	},
	"33-BarometricPressure": {
		Name: "33-BarometricPressure", Unit: "kPa",
		Layout: FieldLayout{BitStart: 24, BitLength: 8, Scale: 1, Offset: 0, Min: 0, Max: 255},
	},
}

// PIDHex returns the two-digit hex PID encoded in a standard
// parameter's name, per §4.5's tie-break: "Standard PID command is
// derived from the first two characters of the parameter name".
func PIDHex(paramName string) string {
	if len(paramName) < 2 {
		return ""
	}
	return paramName[:2]
}
