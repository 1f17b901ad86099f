package tsv

import "strings"

// Role selects the validation rule set for a file, derived once from the
// descriptor's base name suffix and path segment. Generic structural checks
// and the unit pass run for every role.
type Role int

const (
	RoleOther Role = iota
	RoleEvents
	RoleChannelsMEG
	RoleChannelsEEG
	RoleChannelsIEEG
	RoleElectrodesEEG
	RoleElectrodesIEEG
	RoleParticipants
	RoleScans
)

func (r Role) String() string {
	switch r {
	case RoleEvents:
		return "events"
	case RoleChannelsMEG:
		return "channels_meg"
	case RoleChannelsEEG:
		return "channels_eeg"
	case RoleChannelsIEEG:
		return "channels_ieeg"
	case RoleElectrodesEEG:
		return "electrodes_eeg"
	case RoleElectrodesIEEG:
		return "electrodes_ieeg"
	case RoleParticipants:
		return "participants"
	case RoleScans:
		return "scans"
	default:
		return "other"
	}
}

// isChannels reports whether the role is one of the channels rule sets,
// which share the status-column delegate check.
func (r Role) isChannels() bool {
	return r == RoleChannelsMEG || r == RoleChannelsEEG || r == RoleChannelsIEEG
}

func classifyRole(file File) Role {
	name := file.Name
	rel := file.RelativePath

	switch {
	case strings.HasSuffix(name, "_events.tsv"):
		return RoleEvents
	case strings.HasSuffix(name, "_channels.tsv"):
		switch {
		case strings.Contains(rel, "/meg/"):
			return RoleChannelsMEG
		case strings.Contains(rel, "/eeg/"):
			return RoleChannelsEEG
		case strings.Contains(rel, "/ieeg/"):
			return RoleChannelsIEEG
		}
	case strings.HasSuffix(name, "_electrodes.tsv"):
		switch {
		case strings.Contains(rel, "/eeg/"):
			return RoleElectrodesEEG
		case strings.Contains(rel, "/ieeg/"):
			return RoleElectrodesIEEG
		}
	case name == "participants.tsv" || strings.Contains(rel, "phenotype/"):
		return RoleParticipants
	case strings.HasSuffix(name, "_scans.tsv"):
		return RoleScans
	}
	return RoleOther
}
