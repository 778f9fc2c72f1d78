package state

import (
	"fmt"

	"crumarket/native/sales"
)

// SaleGet returns a copy of the sale record.
func (m *Manager) SaleGet(id uint64) (*sales.Sale, bool) {
	sale, ok := m.salesByID[id]
	if !ok {
		return nil, false
	}
	return sale.Clone(), true
}

// SalePut stores a copy of the sale and keeps the collection index in
// lockstep.
func (m *Manager) SalePut(sale *sales.Sale) error {
	if sale == nil {
		return fmt.Errorf("state: nil sale")
	}
	prev, existed := m.salesByID[sale.ID]
	m.record(func() {
		if existed {
			m.salesByID[sale.ID] = prev
		} else {
			delete(m.salesByID, sale.ID)
		}
	})
	m.salesByID[sale.ID] = sale.Clone()
	if !existed {
		key := sale.CollectionKey
		m.record(func() { m.removeFromCollection(key, sale.ID) })
		m.salesByCollection[key] = append(m.salesByCollection[key], sale.ID)
	}
	return nil
}

// SaleRemove deletes the sale and its collection index entry.
func (m *Manager) SaleRemove(id uint64) error {
	sale, ok := m.salesByID[id]
	if !ok {
		return fmt.Errorf("state: sale %d not found", id)
	}
	key := sale.CollectionKey
	m.record(func() {
		m.salesByID[id] = sale
		m.salesByCollection[key] = append(m.salesByCollection[key], id)
	})
	delete(m.salesByID, id)
	m.removeFromCollection(key, id)
	return nil
}

func (m *Manager) removeFromCollection(key string, id uint64) {
	ids := m.salesByCollection[key]
	for i, candidate := range ids {
		if candidate == id {
			m.salesByCollection[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.salesByCollection[key]) == 0 {
		delete(m.salesByCollection, key)
	}
}

// SalesByCollection returns the active sale ids of a collection.
func (m *Manager) SalesByCollection(key string) []uint64 {
	ids := m.salesByCollection[key]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// NextSaleID allocates a fresh monotonically increasing sale id.
func (m *Manager) NextSaleID() (uint64, error) {
	id := m.nextSaleID
	m.record(func() { m.nextSaleID = id })
	m.nextSaleID++
	return id, nil
}
