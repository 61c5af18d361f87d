package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/testutil"
)

func addressInput(name string, isDefault bool) AddressInput {
	return AddressInput{
		FullName:      name,
		PhoneNumber:   testPhone,
		StreetAddress: "12 MG Road",
		City:          "Bengaluru",
		State:         "KA",
		Pincode:       "560001",
		IsDefault:     isDefault,
	}
}

func TestAddressDefaultToggle(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAddressService(db)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, db, testPhone, "")
	p := Principal{CustomerID: customer.ID}

	a, err := svc.Create(ctx, p, addressInput("A", true))
	require.NoError(t, err)
	b, err := svc.Create(ctx, p, addressInput("B", true))
	require.NoError(t, err)

	isDefault := func(id uuid.UUID) bool {
		var addr models.Address
		require.NoError(t, db.First(&addr, "id = ?", id).Error)
		return addr.IsDefault
	}

	assert.False(t, isDefault(a.ID))
	assert.True(t, isDefault(b.ID))

	yes := true
	_, err = svc.Update(ctx, p, a.ID.String(), AddressPatch{IsDefault: &yes})
	require.NoError(t, err)

	assert.True(t, isDefault(a.ID))
	assert.False(t, isDefault(b.ID))

	list, err := svc.List(ctx, p)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID, "default address is listed first")
}

func TestAddressDefaultIsPerCustomer(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAddressService(db)
	ctx := context.Background()
	alice := testutil.CreateCustomer(t, db, testPhone, "")
	bob := testutil.CreateCustomer(t, db, "+910000000003", "")
	bobs := testutil.CreateAddress(t, db, bob, true)

	_, err := svc.Create(ctx, Principal{CustomerID: alice.ID}, addressInput("A", true))
	require.NoError(t, err)

	var reloaded models.Address
	require.NoError(t, db.First(&reloaded, "id = ?", bobs.ID).Error)
	assert.True(t, reloaded.IsDefault)
}

func TestAddressOwnership(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAddressService(db)
	ctx := context.Background()
	owner := testutil.CreateCustomer(t, db, testPhone, "")
	other := testutil.CreateCustomer(t, db, "+910000000004", "")
	addr := testutil.CreateAddress(t, db, owner, true)
	otherDefault := testutil.CreateAddress(t, db, other, true)

	yes := true
	city := "Mysuru"
	_, err := svc.Update(ctx, Principal{CustomerID: other.ID}, addr.ID.String(), AddressPatch{City: &city, IsDefault: &yes})
	assert.Equal(t, KindNotFound, KindOf(err))

	var reloaded models.Address
	require.NoError(t, db.First(&reloaded, "id = ?", otherDefault.ID).Error)
	assert.True(t, reloaded.IsDefault, "a rejected update must not clear the caller's default")

	err = svc.Delete(ctx, Principal{CustomerID: other.ID}, addr.ID.String())
	assert.Equal(t, KindNotFound, KindOf(err))

	require.NoError(t, svc.Delete(ctx, Principal{CustomerID: owner.ID}, addr.ID.String()))
	err = svc.Delete(ctx, Principal{CustomerID: owner.ID}, addr.ID.String())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAddressValidation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAddressService(db)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, db, testPhone, "")
	p := Principal{CustomerID: customer.ID}

	in := addressInput("A", false)
	in.Pincode = " "
	_, err := svc.Create(ctx, p, in)
	assert.Equal(t, KindValidation, KindOf(err))

	addr, err := svc.Create(ctx, p, addressInput("A", false))
	require.NoError(t, err)

	empty := ""
	_, err = svc.Update(ctx, p, addr.ID.String(), AddressPatch{City: &empty})
	assert.Equal(t, KindValidation, KindOf(err))

	landmark := "Near the temple"
	updated, err := svc.Update(ctx, p, addr.ID.String(), AddressPatch{Landmark: &landmark})
	require.NoError(t, err)
	assert.Equal(t, "Near the temple", updated.Landmark)
	assert.Equal(t, "Bengaluru", updated.City)
}

func TestAddressDelete_AfterOrderKeepsOrderHistory(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	svc := NewAddressService(f.db)
	product := testutil.CreateProduct(t, f.db, "Kettle", "100", "0", 5)

	res, err := f.place(t, models.PaymentMethodCOD, line(product, 1))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, f.caller, f.address.ID.String()))

	list, err := svc.List(ctx, f.caller)
	require.NoError(t, err)
	assert.Empty(t, list)

	order, err := f.svc.Get(ctx, f.caller, res.Order.ID.String())
	require.NoError(t, err)
	require.NotNil(t, order.DeliveryAddress)
	assert.Equal(t, f.address.ID, order.DeliveryAddress.ID)
	assert.Equal(t, "12 MG Road", order.DeliveryAddress.StreetAddress)

	_, err = f.place(t, models.PaymentMethodCOD, line(product, 1))
	assert.Equal(t, "Address not found", messageOf(t, err))

	city := "Mysuru"
	_, err = svc.Update(ctx, f.caller, f.address.ID.String(), AddressPatch{City: &city})
	assert.Equal(t, KindNotFound, KindOf(err))
}
