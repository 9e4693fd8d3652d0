// Package propagation implements the near-Earth SGP4 analytical theory.
//
// The model follows Vallado, Crawford, Hujsak & Kelso, "Revisiting Spacetrack
// Report #3" (AIAA 2006-6753) in improved operation mode. The element set's
// Kozai mean motion is converted to a Brouwer mean motion at initialization.
// Deep-space (SDP4) resonance and lunar-solar terms are not modelled; element
// sets with a period of 225 minutes or more are rejected.
package propagation

import (
	"fmt"
	"math"
	"time"

	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	twoPi   = 2.0 * math.Pi
	deg2rad = math.Pi / 180.0
	x2o3    = 2.0 / 3.0

	// minutesPerDay / 2π: rev/day → rad/min.
	xpdotp = 1440.0 / twoPi

	// deepSpacePeriod is the orbital period (minutes) at which SDP4 takes over.
	deepSpacePeriod = 225.0

	keplerTolerance = 1e-12
	keplerMaxIter   = 10
)

// SGP4Propagator evaluates SGP4 for a single element set. It is immutable
// after construction and safe for concurrent use.
type SGP4Propagator struct {
	noradID int
	epoch   time.Time
	grav    GravityConstants

	// Mean elements at epoch: radians, and radians per minute for no.
	ecco, argpo, inclo, mo, nodeo float64
	bstar                         float64
	no                            float64 // Brouwer mean motion

	isimp bool // simplified drag model for perigee below 220 km

	aycof, con41, cc1, cc4, cc5 float64
	d2, d3, d4                  float64
	delmo, eta, sinmao          float64
	argpdot, mdot, nodedot      float64
	omgcof, xmcof, nodecf       float64
	t2cof, t3cof, t4cof, t5cof  float64
	x1mth2, x7thm1, xlcof       float64
}

// NewSGP4Propagator initializes SGP4 for an element set. The element set's
// Gravity selects the constant set. The state at epoch is evaluated once so
// that element sets which are already non-physical fail here.
func NewSGP4Propagator(es *tle.ElementSet) (*SGP4Propagator, error) {
	p := &SGP4Propagator{
		noradID: es.NORADID,
		epoch:   es.Epoch,
		grav:    Constants(es.Gravity),
		ecco:    es.Eccentricity,
		argpo:   es.ArgPerigee * deg2rad,
		inclo:   es.Inclination * deg2rad,
		mo:      es.MeanAnomaly * deg2rad,
		nodeo:   es.RAAN * deg2rad,
		bstar:   es.BStar,
	}

	if err := p.init(es.MeanMotion / xpdotp); err != nil {
		return nil, err
	}
	if _, err := p.PropagateMinutes(0); err != nil {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: %w", p.noradID, err)
	}
	return p, nil
}

// BrouwerMeanMotion returns the un-Kozai'd mean motion in radians per minute.
func (p *SGP4Propagator) BrouwerMeanMotion() float64 { return p.no }

// init computes the secular and drag coefficients (sgp4init/initl).
func (p *SGP4Propagator) init(noKozai float64) error {
	g := p.grav
	ss := 78.0/g.RadiusE + 1.0
	qzms2t := math.Pow((120.0-78.0)/g.RadiusE, 4)

	if noKozai <= 0 {
		return &DecayError{NORADID: p.noradID, Code: DecayMeanMotion, Value: noKozai}
	}

	eccsq := p.ecco * p.ecco
	omeosq := 1.0 - eccsq
	rteosq := math.Sqrt(omeosq)
	sinio, cosio := math.Sincos(p.inclo)
	cosio2 := cosio * cosio
	p.no = brouwerMeanMotion(noKozai, p.ecco, p.inclo, g)

	ao := math.Pow(g.XKE/p.no, x2o3)
	po := ao * omeosq
	con42 := 1.0 - 5.0*cosio2
	p.con41 = -con42 - cosio2 - cosio2
	posq := po * po
	rp := ao * (1.0 - p.ecco)

	if twoPi/p.no >= deepSpacePeriod {
		return fmt.Errorf("NORAD %d: period %.1f min: %w", p.noradID, twoPi/p.no, ErrDeepSpace)
	}

	p.isimp = rp < 220.0/g.RadiusE+1.0

	// Atmospheric density parameters for low perigees.
	sfour := ss
	qzms24 := qzms2t
	perige := (rp - 1.0) * g.RadiusE
	if perige < 156.0 {
		sfour = perige - 78.0
		if perige < 98.0 {
			sfour = 20.0
		}
		qzms24 = math.Pow((120.0-sfour)/g.RadiusE, 4)
		sfour = sfour/g.RadiusE + 1.0
	}
	pinvsq := 1.0 / posq

	tsi := 1.0 / (ao - sfour)
	p.eta = ao * p.ecco * tsi
	etasq := p.eta * p.eta
	eeta := p.ecco * p.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * p.no * (ao*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.375*g.J2*tsi/psisq*p.con41*(8.0+3.0*etasq*(8.0+etasq)))
	p.cc1 = p.bstar * cc2
	cc3 := 0.0
	if p.ecco > 1.0e-4 {
		cc3 = -2.0 * coef * tsi * g.J3OJ2 * p.no * sinio / p.ecco
	}
	p.x1mth2 = 1.0 - cosio2
	p.cc4 = 2.0 * p.no * coef1 * ao * omeosq *
		(p.eta*(2.0+0.5*etasq) + p.ecco*(0.5+2.0*etasq) -
			g.J2*tsi/(ao*psisq)*(-3.0*p.con41*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
				0.75*p.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*p.argpo)))
	p.cc5 = 2.0 * coef1 * ao * omeosq * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * g.J2 * pinvsq * p.no
	temp2 := 0.5 * temp1 * g.J2 * pinvsq
	temp3 := -0.46875 * g.J4 * pinvsq * pinvsq * p.no
	p.mdot = p.no + 0.5*temp1*rteosq*p.con41 + 0.0625*temp2*rteosq*(13.0-78.0*cosio2+137.0*cosio4)
	p.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7.0-114.0*cosio2+395.0*cosio4) +
		temp3*(3.0-36.0*cosio2+49.0*cosio4)
	xhdot1 := -temp1 * cosio
	p.nodedot = xhdot1 + (0.5*temp2*(4.0-19.0*cosio2)+2.0*temp3*(3.0-7.0*cosio2))*cosio

	p.omgcof = p.bstar * cc3 * math.Cos(p.argpo)
	if p.ecco > 1.0e-4 {
		p.xmcof = -x2o3 * coef * p.bstar / eeta
	}
	p.nodecf = 3.5 * omeosq * xhdot1 * p.cc1
	p.t2cof = 1.5 * p.cc1

	// Avoid division by zero for inclinations of 180 degrees.
	if math.Abs(cosio+1.0) > 1.5e-12 {
		p.xlcof = -0.25 * g.J3OJ2 * sinio * (3.0 + 5.0*cosio) / (1.0 + cosio)
	} else {
		p.xlcof = -0.25 * g.J3OJ2 * sinio * (3.0 + 5.0*cosio) / 1.5e-12
	}
	p.aycof = -0.5 * g.J3OJ2 * sinio
	p.delmo = math.Pow(1.0+p.eta*math.Cos(p.mo), 3)
	p.sinmao = math.Sin(p.mo)
	p.x7thm1 = 7.0*cosio2 - 1.0

	if !p.isimp {
		cc1sq := p.cc1 * p.cc1
		p.d2 = 4.0 * ao * tsi * cc1sq
		temp := p.d2 * tsi * p.cc1 / 3.0
		p.d3 = (17.0*ao + sfour) * temp
		p.d4 = 0.5 * temp * ao * tsi * (221.0*ao + 31.0*sfour) * p.cc1
		p.t3cof = p.d2 + 2.0*cc1sq
		p.t4cof = 0.25 * (3.0*p.d3 + p.cc1*(12.0*p.d2+10.0*cc1sq))
		p.t5cof = 0.2 * (3.0*p.d4 + 12.0*p.cc1*p.d3 + 6.0*p.d2*p.d2 + 15.0*cc1sq*(2.0*p.d2+cc1sq))
	}
	return nil
}

// Propagate returns the TEME state at the given instant.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.StateTEME, error) {
	return p.PropagateMinutes(t.Sub(p.epoch).Minutes())
}

// PropagateMinutes returns the TEME state tsince minutes from epoch
// (negative values propagate backwards).
func (p *SGP4Propagator) PropagateMinutes(tsince float64) (transform.StateTEME, error) {
	g := p.grav
	vkmpersec := g.RadiusE * g.XKE / 60.0

	// Secular gravity and atmospheric drag.
	xmdf := p.mo + p.mdot*tsince
	argpdf := p.argpo + p.argpdot*tsince
	nodedf := p.nodeo + p.nodedot*tsince
	argpm := argpdf
	mm := xmdf
	t2 := tsince * tsince
	nodem := nodedf + p.nodecf*t2
	tempa := 1.0 - p.cc1*tsince
	tempe := p.bstar * p.cc4 * tsince
	templ := p.t2cof * t2

	if !p.isimp {
		delomg := p.omgcof * tsince
		delm := p.xmcof * (math.Pow(1.0+p.eta*math.Cos(xmdf), 3) - p.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * tsince
		t4 := t3 * tsince
		tempa = tempa - p.d2*t2 - p.d3*t3 - p.d4*t4
		tempe = tempe + p.bstar*p.cc5*(math.Sin(mm)-p.sinmao)
		templ = templ + p.t3cof*t3 + t4*(p.t4cof+tsince*p.t5cof)
	}

	nm := p.no
	em := p.ecco
	inclm := p.inclo

	am := math.Pow(g.XKE/nm, x2o3) * tempa * tempa
	nm = g.XKE / math.Pow(am, 1.5)
	em -= tempe
	if nm <= 0 || math.IsNaN(nm) || math.IsInf(nm, 0) {
		return transform.StateTEME{}, &DecayError{NORADID: p.noradID, TSince: tsince, Code: DecayMeanMotion, Value: nm}
	}
	if em >= 1.0 || em < -0.001 {
		return transform.StateTEME{}, &DecayError{NORADID: p.noradID, TSince: tsince, Code: DecayEccentricity, Value: em}
	}
	if am < 0.95 {
		return transform.StateTEME{}, &DecayError{NORADID: p.noradID, TSince: tsince, Code: DecayEccentricity, Value: am}
	}
	if em < 1.0e-6 {
		em = 1.0e-6
	}
	mm += p.no * templ
	xlm := mm + argpm + nodem

	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	sinip, cosip := math.Sincos(inclm)

	// Long-period periodics.
	axnl := em * math.Cos(argpm)
	temp := 1.0 / (am * (1.0 - em*em))
	aynl := em*math.Sin(argpm) + temp*p.aycof
	xl := mm + argpm + nodem + temp*p.xlcof*axnl

	// Kepler's equation.
	u := math.Mod(xl-nodem, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	ktr := 0
	for math.Abs(tem5) >= keplerTolerance && ktr < keplerMaxIter {
		sineo1, coseo1 = math.Sincos(eo1)
		tem5 = 1.0 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			tem5 = math.Copysign(0.95, tem5)
		}
		eo1 += tem5
		ktr++
	}
	if math.Abs(tem5) >= keplerTolerance || math.IsNaN(tem5) {
		return transform.StateTEME{}, &DivergenceError{NORADID: p.noradID, TSince: tsince, Iterations: ktr, Residual: tem5}
	}

	// Short-period preliminary quantities.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1.0 - el2)
	if pl < 0 {
		return transform.StateTEME{}, &DecayError{NORADID: p.noradID, TSince: tsince, Code: DecaySemiLatusRectum, Value: pl}
	}

	rl := am * (1.0 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1.0 - el2)
	temp = esine / (1.0 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1.0 - 2.0*sinu*sinu
	temp = 1.0 / pl
	temp1 := 0.5 * g.J2 * temp
	temp2 := temp1 * temp

	// Short-period periodics.
	mrt := rl*(1.0-1.5*temp2*betal*p.con41) + 0.5*temp1*p.x1mth2*cos2u
	su -= 0.25 * temp2 * p.x7thm1 * sin2u
	xnode := nodem + 1.5*temp2*cosip*sin2u
	xinc := inclm + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*p.x1mth2*sin2u/g.XKE
	rvdot := rvdotl + nm*temp1*(p.x1mth2*cos2u+1.5*p.con41)/g.XKE

	// Orientation vectors.
	sinsu, cossu := math.Sincos(su)
	snod, cnod := math.Sincos(xnode)
	sini, cosi := math.Sincos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	uvec := r3.Vec{X: xmx*sinsu + cnod*cossu, Y: xmy*sinsu + snod*cossu, Z: sini * sinsu}
	vvec := r3.Vec{X: xmx*cossu - cnod*sinsu, Y: xmy*cossu - snod*sinsu, Z: sini * cossu}

	if mrt < 1.0 {
		return transform.StateTEME{}, &DecayError{NORADID: p.noradID, TSince: tsince, Code: DecayReentry, Value: mrt}
	}

	return transform.StateTEME{
		Position: r3.Scale(mrt*g.RadiusE, uvec),
		Velocity: r3.Scale(vkmpersec, r3.Add(r3.Scale(mvt, uvec), r3.Scale(rvdot, vvec))),
	}, nil
}
