package zcl

// Manufacturer codes carried in manufacturer-specific frames.
const (
	ManufacturerSignify       uint16 = 0x100B
	ManufacturerAtlanticGroup uint16 = 0x1243
)
