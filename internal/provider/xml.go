// Package provider fetches and decodes the upstream XML event catalog and
// maps it into catalog.Event values (Components F and G).
package provider

import "encoding/xml"

// planList is the root of the upstream document (§6, §4.7). Fields not of
// interest are left undecoded: encoding/xml ignores unknown attributes and
// elements by default, giving forward-compatible schema drift for free.
type planList struct {
	XMLName xml.Name `xml:"planList"`
	Output  output   `xml:"output"`
}

type output struct {
	BasePlans []basePlan `xml:"base_plan"`
}

type basePlan struct {
	SellMode string `xml:"sell_mode,attr"`
	Title    string `xml:"title,attr"`
	Plans    []plan `xml:"plan"`
}

type plan struct {
	StartDate string `xml:"plan_start_date,attr"`
	EndDate   string `xml:"plan_end_date,attr"`
	Zones     []zone `xml:"zone"`
}

type zone struct {
	Capacity int     `xml:"capacity,attr"`
	Price    float64 `xml:"price,attr"`
}

const sellModeOnline = "online"
