package models

// GeoIPBlock and GeoIPLocation are loaded from an external GeoIP dataset.
// Either table may be empty.
type GeoIPBlock struct {
	Network   string `gorm:"column:network;type:cidr;primary_key" json:"network"`
	GeonameID int64  `gorm:"column:geoname_id;index" json:"geonameId"`
}

func (GeoIPBlock) TableName() string {
	return "geoip_blocks"
}

type GeoIPLocation struct {
	GeonameID      int64  `gorm:"column:geoname_id;primary_key" json:"geonameId"`
	CountryISOCode string `gorm:"column:country_iso_code;type:varchar(2)" json:"countryIsoCode"`
	CountryName    string `gorm:"column:country_name;type:varchar(255)" json:"countryName"`
}

func (GeoIPLocation) TableName() string {
	return "geoip_locations"
}
