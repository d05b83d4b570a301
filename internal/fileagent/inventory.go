package fileagent

import (
	"github.com/northwind-rmm/agent/internal/collectors"
)

// AgentDetailsResult is the JSON payload returned for get_agent_details: a
// blend of system and hardware facts pulled from the collectors package.
type AgentDetailsResult struct {
	Hostname     string `json:"hostname"`
	OSType       string `json:"osType"`
	OSVersion    string `json:"osVersion"`
	Architecture string `json:"architecture"`
	CPUModel     string `json:"cpuModel"`
	CPUCores     int    `json:"cpuCores"`
	RAMTotalMB   uint64 `json:"ramTotalMb"`
	DiskTotalGB  uint64 `json:"diskTotalGb"`
}

// Inventory answers get_agent_details/get_installed_software against the
// host's real hardware and package state, reusing the collectors package's
// gopsutil-backed collection rather than re-implementing it.
type Inventory struct {
	hardware *collectors.HardwareCollector
	software *collectors.SoftwareCollector
}

func NewInventory() *Inventory {
	return &Inventory{
		hardware: collectors.NewHardwareCollector(),
		software: collectors.NewSoftwareCollector(),
	}
}

func (inv *Inventory) AgentDetails() (AgentDetailsResult, error) {
	sys, err := inv.hardware.CollectSystemInfo()
	if err != nil {
		return AgentDetailsResult{}, err
	}
	hw, err := inv.hardware.CollectHardware()
	if err != nil {
		return AgentDetailsResult{}, err
	}
	return AgentDetailsResult{
		Hostname:     sys.Hostname,
		OSType:       sys.OSType,
		OSVersion:    sys.OSVersion,
		Architecture: sys.Architecture,
		CPUModel:     hw.CPUModel,
		CPUCores:     hw.CPUCores,
		RAMTotalMB:   hw.RAMTotalMB,
		DiskTotalGB:  hw.DiskTotalGB,
	}, nil
}

func (inv *Inventory) InstalledSoftware() ([]collectors.SoftwareItem, error) {
	return inv.software.Collect()
}
