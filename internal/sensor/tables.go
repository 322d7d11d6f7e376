package sensor

import "github.com/micro-nova/imx415-go/internal/hardware"

// commonRegs is applied before every mode table on stream start.
var commonRegs = []hardware.RegVal{
	{Reg: 0x32D4, Val: 0x21},
	{Reg: 0x32EC, Val: 0xA1},
	{Reg: 0x3452, Val: 0x7F},
	{Reg: 0x3453, Val: 0x03},
	{Reg: 0x358A, Val: 0x04},
	{Reg: 0x35A1, Val: 0x02},
	{Reg: 0x36BC, Val: 0x0C},
	{Reg: 0x36CC, Val: 0x53},
	{Reg: 0x36CD, Val: 0x00},
	{Reg: 0x36CE, Val: 0x3C},
	{Reg: 0x36D0, Val: 0x8C},
	{Reg: 0x36D1, Val: 0x00},
	{Reg: 0x36D2, Val: 0x71},
	{Reg: 0x36D4, Val: 0x3C},
	{Reg: 0x36D6, Val: 0x53},
	{Reg: 0x36D7, Val: 0x00},
	{Reg: 0x36D8, Val: 0x71},
	{Reg: 0x36DA, Val: 0x8C},
	{Reg: 0x36DB, Val: 0x00},
	{Reg: 0x3701, Val: 0x00},
	{Reg: 0x3724, Val: 0x02},
	{Reg: 0x3726, Val: 0x02},
	{Reg: 0x3732, Val: 0x02},
	{Reg: 0x3734, Val: 0x03},
	{Reg: 0x3736, Val: 0x03},
	{Reg: 0x3742, Val: 0x03},
	{Reg: 0x3862, Val: 0xE0},
	{Reg: 0x38CC, Val: 0x30},
	{Reg: 0x38CD, Val: 0x2F},
	{Reg: 0x395C, Val: 0x0C},
	{Reg: 0x3A42, Val: 0xD1},
	{Reg: 0x3A4C, Val: 0x77},
	{Reg: 0x3AE0, Val: 0x02},
	{Reg: 0x3AEC, Val: 0x0C},
	{Reg: 0x3B00, Val: 0x2E},
	{Reg: 0x3B06, Val: 0x29},
	{Reg: 0x3B98, Val: 0x25},
	{Reg: 0x3B99, Val: 0x21},
	{Reg: 0x3B9B, Val: 0x13},
	{Reg: 0x3B9C, Val: 0x13},
	{Reg: 0x3B9D, Val: 0x13},
	{Reg: 0x3B9E, Val: 0x13},
	{Reg: 0x3BA1, Val: 0x00},
	{Reg: 0x3BA2, Val: 0x06},
	{Reg: 0x3BA3, Val: 0x0B},
	{Reg: 0x3BA4, Val: 0x10},
	{Reg: 0x3BA5, Val: 0x14},
	{Reg: 0x3BA6, Val: 0x18},
	{Reg: 0x3BA7, Val: 0x1A},
	{Reg: 0x3BA8, Val: 0x1A},
	{Reg: 0x3BA9, Val: 0x1A},
	{Reg: 0x3BAC, Val: 0xED},
	{Reg: 0x3BAD, Val: 0x01},
	{Reg: 0x3BAE, Val: 0xF6},
	{Reg: 0x3BAF, Val: 0x02},
	{Reg: 0x3BB0, Val: 0xA2},
	{Reg: 0x3BB1, Val: 0x03},
	{Reg: 0x3BB2, Val: 0xE0},
	{Reg: 0x3BB3, Val: 0x03},
	{Reg: 0x3BB4, Val: 0xE0},
	{Reg: 0x3BB5, Val: 0x03},
	{Reg: 0x3BB6, Val: 0xE0},
	{Reg: 0x3BB7, Val: 0x03},
	{Reg: 0x3BB8, Val: 0xE0},
	{Reg: 0x3BBA, Val: 0xE0},
	{Reg: 0x3BBC, Val: 0xDA},
	{Reg: 0x3BBE, Val: 0x88},
	{Reg: 0x3BC0, Val: 0x44},
	{Reg: 0x3BC2, Val: 0x7B},
	{Reg: 0x3BC4, Val: 0xA2},
	{Reg: 0x3BC8, Val: 0xBD},
	{Reg: 0x3BCA, Val: 0xBD},
	{Reg: hardware.RegNull, Val: 0x00},
}

// linear10bit3864x2192At891M programs the full-array 10-bit linear mode
// for an 891 Mbps/lane link. Lane mode (0x4001) is written by power-on.
var linear10bit3864x2192At891M = []hardware.RegVal{
	{Reg: 0x3002, Val: 0x00},
	{Reg: 0x3008, Val: 0x7F},
	{Reg: 0x300A, Val: 0x5B},
	{Reg: 0x3028, Val: 0x98},
	{Reg: 0x3029, Val: 0x08},
	{Reg: 0x3031, Val: 0x00},
	{Reg: 0x3032, Val: 0x00},
	{Reg: 0x3033, Val: 0x05},
	{Reg: 0x3050, Val: 0x08},
	{Reg: 0x30C1, Val: 0x00},
	{Reg: 0x3116, Val: 0x24},
	{Reg: 0x311E, Val: 0x24},
	{Reg: 0x4004, Val: 0x48},
	{Reg: 0x4005, Val: 0x09},
	{Reg: 0x400C, Val: 0x00},
	{Reg: 0x4018, Val: 0x7F},
	{Reg: 0x401A, Val: 0x37},
	{Reg: 0x401C, Val: 0x37},
	{Reg: 0x401E, Val: 0xF7},
	{Reg: 0x401F, Val: 0x00},
	{Reg: 0x4020, Val: 0x3F},
	{Reg: 0x4022, Val: 0x6F},
	{Reg: 0x4024, Val: 0x3F},
	{Reg: 0x4026, Val: 0x5F},
	{Reg: 0x4028, Val: 0x2F},
	{Reg: 0x4074, Val: 0x01},
	{Reg: hardware.RegNull, Val: 0x00},
}

// CommonRegs returns the register table shared by every mode.
func CommonRegs() []hardware.RegVal {
	return commonRegs
}
