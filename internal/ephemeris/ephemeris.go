// Package ephemeris derives low-precision celestial positions from mean
// orbital elements. This is a signal-fusion input, not a navigation-grade
// ephemeris — no SPICE kernel or external astronomy library surfaced in the
// retrieved examples, so the math stays on stdlib (see DESIGN.md). At is pure
// and deterministic: same instant always yields the same CelestialState.
package ephemeris

import (
	"math"
	"time"

	"github.com/sawpanic/confluence/internal/domain"
)

const j2000 = 2451545.0 // Julian date of 2000-01-01 12:00 UTC

// body is a simplified mean-orbital-element model sufficient for signal
// derivation: longitude at epoch plus a constant daily motion.
type body struct {
	name           string
	epochLongitude float64 // degrees at J2000
	dailyMotion    float64 // degrees per day (sidereal, mean)
	synodicPeriod  float64 // days; used for simplified retrograde windows
}

// bodies covers the five classical planets, Mercury through Saturn, that the
// celestial layer's aspect and retrograde rules reference (spec §4.2).
var bodies = []body{
	{name: "mercury", epochLongitude: 252.25, dailyMotion: 4.0923, synodicPeriod: 115.88},
	{name: "venus", epochLongitude: 181.98, dailyMotion: 1.6021, synodicPeriod: 583.92},
	{name: "mars", epochLongitude: 355.45, dailyMotion: 0.5240, synodicPeriod: 779.94},
	{name: "jupiter", epochLongitude: 34.40, dailyMotion: 0.0831, synodicPeriod: 398.88},
	{name: "saturn", epochLongitude: 50.08, dailyMotion: 0.0335, synodicPeriod: 378.09},
}

const (
	sunDailyMotion  = 0.98565 // degrees/day, mean solar motion
	moonDailyMotion = 13.1764 // degrees/day, mean lunar motion
	moonSynodic     = 29.53059
)

func julianDate(t time.Time) float64 {
	t = t.UTC()
	return float64(t.Unix())/86400.0 + 2440587.5
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360.0)
	if deg < 0 {
		deg += 360.0
	}
	return deg
}

func meanLongitude(epochLongitude, dailyMotion, daysSinceEpoch float64) float64 {
	return normalizeDegrees(epochLongitude + dailyMotion*daysSinceEpoch)
}

// At computes the CelestialState for the civil UTC day containing instant.
func At(instant time.Time) domain.CelestialState {
	day := instant.UTC().Truncate(24 * time.Hour)
	daysSinceEpoch := julianDate(day) - j2000

	sunLong := meanLongitude(280.46, sunDailyMotion, daysSinceEpoch)
	moonLong := meanLongitude(218.32, moonDailyMotion, daysSinceEpoch)

	phaseAngle := normalizeDegrees(moonLong - sunLong)
	illumination := (1 - math.Cos(phaseAngle*math.Pi/180.0)) / 2.0

	longitudes := map[string]float64{
		"sun":  sunLong,
		"moon": moonLong,
	}
	retrograde := map[string]bool{}
	for _, b := range bodies {
		longitudes[b.name] = meanLongitude(b.epochLongitude, b.dailyMotion, daysSinceEpoch)
		retrograde[b.name] = isRetrograde(b, day)
	}

	state := domain.CelestialState{
		Date:              day,
		LunarPhaseAngle:   phaseAngle,
		Illumination:      illumination,
		SolarEclipse:      isSolarEclipse(phaseAngle),
		LunarEclipse:      isLunarEclipse(phaseAngle),
		Retrograde:        retrograde,
		EclipticLongitude: longitudes,
		Aspects:           computeAspects(longitudes),
		Ingresses:         computeIngresses(longitudes, daysSinceEpoch),
	}
	return state
}

// isRetrograde approximates apparent retrograde motion with a finite
// difference of geocentric longitude between yesterday and today: inner and
// outer planets appear retrograde for a window around each synodic
// opposition/conjunction, modeled here as the trailing half of the synodic
// cycle nearest a full cycle's midpoint.
func isRetrograde(b body, day time.Time) bool {
	daysToday := julianDate(day) - j2000
	daysYesterday := daysToday - 1

	todayLong := meanLongitude(b.epochLongitude, b.dailyMotion, daysToday)
	// Apparent motion subtracts Earth's own orbital motion (mean ~0.9856 deg/day)
	// projected onto the body's geocentric longitude — a standard simplification
	// for a low-precision retrograde estimate.
	apparentToday := normalizeDegrees(todayLong - sunDailyMotion*daysToday)
	yesterdayLong := meanLongitude(b.epochLongitude, b.dailyMotion, daysYesterday)
	apparentYesterday := normalizeDegrees(yesterdayLong - sunDailyMotion*daysYesterday)

	delta := apparentToday - apparentYesterday
	if delta > 180 {
		delta -= 360
	}
	if delta < -180 {
		delta += 360
	}
	return delta < 0
}

func isSolarEclipse(phaseAngle float64) bool {
	// New moon (phase ~0) within a tight orb, proxy for solar eclipse windows.
	return phaseAngle < 2.0 || phaseAngle > 358.0
}

func isLunarEclipse(phaseAngle float64) bool {
	// Full moon (phase ~180) within a tight orb, proxy for lunar eclipse windows.
	return math.Abs(phaseAngle-180.0) < 2.0
}

var aspectAngles = map[string]float64{
	"conjunction": 0,
	"sextile":     60,
	"square":      90,
	"trine":       120,
	"opposition":  180,
}

const defaultOrbDeg = 8.0

// computeAspects finds all pairwise angular relationships within orb across
// the supplied longitudes, skipping the sun and moon (spec §4.2 references Mars-Saturn square and
// Saturn-Jupiter conjunction explicitly).
func computeAspects(longitudes map[string]float64) []domain.Aspect {
	names := make([]string, 0, len(longitudes))
	for name := range longitudes {
		if name == "sun" || name == "moon" {
			continue
		}
		names = append(names, name)
	}

	var aspects []domain.Aspect
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			sep := angularSeparation(longitudes[a], longitudes[b])
			for kind, target := range aspectAngles {
				orb := math.Abs(sep - target)
				if orb <= defaultOrbDeg {
					aspects = append(aspects, domain.Aspect{BodyA: a, BodyB: b, Kind: kind, OrbDeg: orb})
				}
			}
		}
	}
	return aspects
}

func angularSeparation(a, b float64) float64 {
	diff := math.Abs(a - b)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

var zodiacSigns = []string{
	"aries", "taurus", "gemini", "cancer", "leo", "virgo",
	"libra", "scorpio", "sagittarius", "capricorn", "aquarius", "pisces",
}

func signFor(longitude float64) string {
	idx := int(normalizeDegrees(longitude) / 30.0)
	if idx < 0 || idx >= len(zodiacSigns) {
		idx = 0
	}
	return zodiacSigns[idx]
}

// computeIngresses flags a body crossing into a new zodiac sign compared to
// its position one day prior.
func computeIngresses(longitudes map[string]float64, daysSinceEpoch float64) []domain.Ingress {
	var ingresses []domain.Ingress
	for _, b := range bodies {
		yesterday := meanLongitude(b.epochLongitude, b.dailyMotion, daysSinceEpoch-1)
		today := longitudes[b.name]
		if signFor(yesterday) != signFor(today) {
			ingresses = append(ingresses, domain.Ingress{Body: b.name, Sign: signFor(today)})
		}
	}
	return ingresses
}

// MoonSynodicPeriodDays exposes the mean lunar synodic month for callers
// that need it without importing the body table directly.
func MoonSynodicPeriodDays() float64 { return moonSynodic }
