package backtest

import (
	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
)

// SimConfig parameterises a simulation
type SimConfig struct {
	Mode             CapitalMode
	ReferenceCapital float64
	// Stake is the notional of a PnL-mode signal-driven entry
	Stake         float64
	Commission    commission.Schedule
	TakeProfitPct float64 // fraction, <= 0 disables
	StopLossPct   float64 // fraction, <= 0 disables
}

// Simulate replays signals against prices and returns the portfolio state
// after each period. Inputs are not modified.
func Simulate(prices []core.PricePoint, signals core.SignalSeries, cfg SimConfig) (*Simulation, error) {
	if err := signals.AlignsWith(prices); err != nil {
		return nil, err
	}
	cfg.Mode = ResolveCapitalMode(cfg.Mode, cfg.ReferenceCapital)

	sim := &Simulation{
		Mode:     cfg.Mode,
		Periodic: signals.Periodic,
		States:   make([]PortfolioState, 0, len(prices)),
	}
	if len(prices) == 0 {
		return sim, nil
	}

	p := newPortfolio(cfg)
	prev := core.ActionHold
	for i, price := range prices {
		sim.States = append(sim.States, p.step(price, signals.Points[i], prev, signals.Periodic))
		prev = signals.Points[i].Action
	}
	sim.Fills = p.fills
	sim.FirstInvestment = p.first
	return sim, nil
}

type portfolio struct {
	cfg       SimConfig
	cash      float64
	shares    float64
	costBasis float64
	invested  float64
	first     float64
	fills     []Fill
}

func newPortfolio(cfg SimConfig) *portfolio {
	p := &portfolio{cfg: cfg}
	if cfg.Mode == CapitalModeReference {
		p.cash = cfg.ReferenceCapital
	}
	return p
}

func (p *portfolio) step(price core.PricePoint, sig core.SignalPoint, prev core.Action, periodic bool) PortfolioState {
	effective := sig.Action
	forced := p.riskCheck(price.Close)
	if forced != ForceNone {
		effective = core.ActionSell
	}

	var deployed float64
	switch {
	case forced != ForceNone:
		p.sell(price, forced)
	case effective == core.ActionBuy && periodic:
		deployed = p.buyInstallment(price, sig.InvestmentAmount)
	case effective == core.ActionBuy && prev.Value() <= 0:
		deployed = p.buyAll(price)
	case effective == core.ActionSell && prev.Value() >= 0:
		p.sell(price, ForceNone)
	}

	return PortfolioState{
		Date:               price.Date,
		Close:              price.Close,
		Signal:             sig.Action,
		Effective:          effective,
		Forced:             forced,
		Cash:               p.cash,
		Shares:             p.shares,
		CostBasis:          p.costBasis,
		CumulativeInvested: p.invested,
		Invested:           deployed,
		Value:              p.cash + p.shares*price.Close,
	}
}

// riskCheck evaluates take-profit before stop-loss against the cost basis
func (p *portfolio) riskCheck(last float64) ForceReason {
	if p.shares <= 0 || p.costBasis <= 0 {
		return ForceNone
	}
	if tp := p.cfg.TakeProfitPct; tp > 0 && last >= p.costBasis*(1+tp) {
		return ForceTakeProfit
	}
	if sl := p.cfg.StopLossPct; sl > 0 && last <= p.costBasis*(1-sl) {
		return ForceStopLoss
	}
	return ForceNone
}

// buyInstallment invests a fixed amount; it returns the capital deployed
func (p *portfolio) buyInstallment(price core.PricePoint, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	if p.cfg.Mode == CapitalModeReference && p.cash < amount {
		return 0
	}
	if !p.buy(price, amount) {
		return 0
	}
	p.invested += amount
	return amount
}

// buyAll deploys all available cash; it returns the new capital deployed
func (p *portfolio) buyAll(price core.PricePoint) float64 {
	var amount, injected float64
	if p.cfg.Mode == CapitalModeReference {
		amount = p.cash
	} else {
		if p.invested == 0 {
			injected = p.stake()
		}
		amount = p.cash + p.invested + injected
	}
	if amount <= 0 || !p.buy(price, amount) {
		return 0
	}
	if p.cfg.Mode == CapitalModeReference {
		if p.invested == 0 {
			p.invested = amount
			return amount
		}
		return 0
	}
	p.invested += injected
	return injected
}

func (p *portfolio) stake() float64 {
	if p.cfg.ReferenceCapital > 0 {
		return p.cfg.ReferenceCapital
	}
	return p.cfg.Stake
}

// buy spends amount (fee included) on shares at the close
func (p *portfolio) buy(price core.PricePoint, amount float64) bool {
	fee := p.cfg.Commission.Calculate(amount)
	if amount <= fee {
		return false
	}
	bought := (amount - fee) / price.Close
	total := p.shares + bought
	p.costBasis = (p.shares*p.costBasis + bought*price.Close) / total
	p.shares = total
	p.cash -= amount
	if p.first == 0 {
		p.first = amount
	}
	p.fills = append(p.fills, Fill{
		Date:   price.Date,
		Side:   SideBuy,
		Price:  price.Close,
		Shares: bought,
		Amount: amount,
		Fee:    fee,
	})
	return true
}

// sell liquidates the whole position at the close
func (p *portfolio) sell(price core.PricePoint, reason ForceReason) {
	if p.shares <= 0 {
		return
	}
	gross := p.shares * price.Close
	fee := p.cfg.Commission.Calculate(gross)
	p.fills = append(p.fills, Fill{
		Date:   price.Date,
		Side:   SideSell,
		Price:  price.Close,
		Shares: p.shares,
		Amount: gross,
		Fee:    fee,
		Reason: reason,
	})
	p.cash += gross - fee
	p.shares = 0
	p.costBasis = 0
}
