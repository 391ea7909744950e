package game

import (
	"fmt"
	"math"
	"time"

	"tycoon.ai/internal/format"
	"tycoon.ai/internal/protocol"
	"tycoon.ai/internal/sim/catalogs"
)

// Progress is the completed share of the running cycle in percent, clamped
// to [0, 100]. Idle businesses report 0.
func Progress(b BusinessState, now time.Time) float64 {
	if !b.IsWorking {
		return 0
	}
	total := b.WorkEndsAt.Sub(b.StartedAt).Seconds()
	if total <= 0 {
		return 0
	}
	p := now.Sub(b.StartedAt).Seconds() / total * 100
	return math.Max(0, math.Min(100, p))
}

// Remaining is the seconds left in the running cycle, or the full cycle time
// when the business is idle.
func Remaining(cats *catalogs.Catalogs, id string, b BusinessState, now time.Time) float64 {
	if b.IsWorking {
		return math.Max(0, b.WorkEndsAt.Sub(now).Seconds())
	}
	secs, _ := cats.TimeToProfit(id, b.Amount)
	return secs
}

// AmountProgress is amount relative to the next milestone in percent.
func AmountProgress(cats *catalogs.Catalogs, id string, amount int) (float64, string) {
	next, err := cats.NextMilestone(id, amount)
	if err != nil || next <= 0 {
		return 0, ""
	}
	return math.Min(100, float64(amount)/float64(next)*100), fmt.Sprintf("%d/%d", amount, next)
}

// BuildStateMsg renders st for clients.
func BuildStateMsg(cats *catalogs.Catalogs, st State, now time.Time) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:                protocol.TypeState,
		ProtocolVersion:     protocol.Version,
		Tick:                st.Tick,
		ServerTimeMs:        now.UnixMilli(),
		Money:               st.Wallet.Money,
		MoneyText:           format.Money(st.Wallet.Money),
		OfflineEarnings:     st.OfflineEarnings,
		OfflineEarningsText: format.Money(st.OfflineEarnings),
		Businesses:          make([]protocol.BusinessView, 0, len(cats.Businesses.Order)),
		Managers:            make([]protocol.ManagerView, 0, len(cats.Managers.Order)),
	}
	money := st.Wallet.Money

	for _, id := range cats.Businesses.Order {
		def := cats.Businesses.ByID[id]
		b := st.Businesses[id]
		upgrade, _ := cats.UpgradeCost(id, b.Amount)
		profit, _ := cats.Profit(id, b.Amount)
		cycle, _ := cats.TimeToProfit(id, b.Amount)
		next, _ := cats.NextMilestone(id, b.Amount)
		amountPct, amountLabel := AmountProgress(cats, id, b.Amount)

		v := protocol.BusinessView{
			ID:              id,
			Amount:          b.Amount,
			IsUnlocked:      b.Unlocked(),
			IsWorking:       b.IsWorking,
			CanUnlock:       !b.Unlocked() && money >= def.InitialCost,
			UnlockCost:      def.InitialCost,
			UnlockCostText:  format.Money(def.InitialCost),
			CanUpgrade:      b.Unlocked() && money >= upgrade,
			UpgradeCost:     upgrade,
			UpgradeCostText: format.Money(upgrade),
			Profit:          profit,
			ProfitText:      format.Money(profit),
			CycleSeconds:    cycle,
			RemainingText:   format.Duration(Remaining(cats, id, b, now)),
			Progress:        Progress(b, now),
			NextMilestone:   next,
			AmountProgress:  amountPct,
			AmountLabel:     amountLabel,
		}
		if mid, ok := cats.ManagerForBusiness(id); ok {
			v.ManagerID = mid
			v.ManagerHired = st.Managers[mid].IsUnlocked
		}
		msg.Businesses = append(msg.Businesses, v)
	}

	for _, id := range cats.Managers.Order {
		def := cats.Managers.ByID[id]
		hired := st.Managers[id].IsUnlocked
		canHire := !hired && money >= def.Cost
		msg.Managers = append(msg.Managers, protocol.ManagerView{
			ID:         id,
			BusinessID: def.BusinessID,
			IsUnlocked: hired,
			CanHire:    canHire,
			Cost:       def.Cost,
			CostText:   format.Money(def.Cost),
		})
		if canHire {
			msg.HasHireableManager = true
		}
	}
	return msg
}

// WelcomeCatalog renders the catalog part of WELCOME.
func WelcomeCatalog(cats *catalogs.Catalogs) protocol.CatalogMsg {
	out := protocol.CatalogMsg{
		Milestones:       append([]int(nil), catalogs.Milestones...),
		BusinessesDigest: cats.Businesses.Digest,
		ManagersDigest:   cats.Managers.Digest,
	}
	for _, id := range cats.Businesses.Order {
		b := cats.Businesses.ByID[id]
		out.Businesses = append(out.Businesses, protocol.BusinessInfo{
			ID:             b.ID,
			Name:           b.Name,
			Image:          b.Image,
			InitialCost:    b.InitialCost,
			Coefficient:    b.Coefficient,
			InitialTime:    b.InitialTime,
			InitialRevenue: b.InitialRevenue,
		})
	}
	for _, id := range cats.Managers.Order {
		m := cats.Managers.ByID[id]
		out.Managers = append(out.Managers, protocol.ManagerInfo{
			ID:         m.ID,
			BusinessID: m.BusinessID,
			Name:       m.Name,
			Image:      m.Image,
			Cost:       m.Cost,
		})
	}
	return out
}
