package weather

// ConditionForCode maps an OpenWeatherMap condition code to a Condition.
// Codes outside the known groups map to ConditionUnknown.
func ConditionForCode(code int) Condition {
	switch {
	case code >= 200 && code <= 232:
		return ConditionStorm
	case code >= 300 && code <= 321:
		return ConditionLightRain
	case code >= 500 && code <= 504:
		return ConditionRain
	case code == 511:
		return ConditionSnow
	case code >= 520 && code <= 531:
		return ConditionRain
	case code >= 600 && code <= 622:
		return ConditionSnow
	case code >= 701 && code <= 761:
		return ConditionFog
	case code == 781:
		return ConditionStorm
	case code == 800:
		return ConditionClear
	case code == 801:
		return ConditionLightClouds
	case code >= 802 && code <= 804:
		return ConditionCloudy
	default:
		return ConditionUnknown
	}
}

// ConditionIcons is the default IconResolver, backed by ConditionForCode.
type ConditionIcons struct{}

// ResolveIcon implements IconResolver.
func (ConditionIcons) ResolveIcon(code int) (Condition, bool) {
	c := ConditionForCode(code)
	return c, c != ConditionUnknown
}
