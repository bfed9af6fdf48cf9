package gateway

import (
	"errors"
	"fmt"

	"github.com/velocity-dms/velocity-dms/internal/shared"
)

// Command names one mutating workflow operation. Every command carries
// a role guard; reads are unguarded and served by the entity handlers.
type Command string

const (
	CmdCreateDealerOrder   Command = "dealer_order.create"
	CmdApproveDealerOrder  Command = "dealer_order.approve"
	CmdRejectDealerOrder   Command = "dealer_order.reject_approval"
	CmdCancelDealerOrder   Command = "dealer_order.cancel"
	CmdDeleteDealerOrder   Command = "dealer_order.delete"
	CmdProgressDealerOrder Command = "dealer_order.progress"

	CmdCreateCustomerOrder Command = "customer_order.create"
	CmdRejectCustomerOrder Command = "customer_order.reject"
	CmdCancelCustomerOrder Command = "customer_order.cancel"
	CmdDeleteCustomerOrder Command = "customer_order.delete"
	CmdCompleteCustomer    Command = "customer_order.complete"

	CmdCreateDealerQuote   Command = "quotation.create.dealer"
	CmdCreateCustomerQuote Command = "quotation.create.customer"
	CmdSendQuote           Command = "quotation.send"
	CmdAcceptDealerQuote   Command = "quotation.accept.dealer"
	CmdAcceptCustomerQuote Command = "quotation.accept.customer"
	CmdRejectDealerQuote   Command = "quotation.reject.dealer"
	CmdRejectCustomerQuote Command = "quotation.reject.customer"

	CmdReserveUnit  Command = "inventory.reserve"
	CmdReleaseUnit  Command = "inventory.release"
	CmdRegisterUnit Command = "inventory.register"

	CmdRecordPayment  Command = "billing.record_payment"
	CmdConfirmPayment Command = "billing.confirm_payment"
	CmdFailPayment    Command = "billing.fail_payment"
	CmdDeletePayment  Command = "billing.delete_payment"

	CmdScheduleDelivery Command = "delivery.schedule"
	CmdDispatchDelivery Command = "delivery.dispatch"
	CmdConfirmShipper   Command = "delivery.confirm_shipper"
	CmdConfirmDealer    Command = "delivery.confirm_dealer"
	CmdConfirmAppt      Command = "delivery.confirm_appointment"
	CmdCompleteAppt     Command = "delivery.complete_appointment"
	CmdCancelDelivery   Command = "delivery.cancel"
	CmdDeleteDelivery   Command = "delivery.delete"
)

// ErrForbidden rejects a command the actor's role may not perform.
var ErrForbidden = errors.New("gateway: role not permitted")

// roleGuards is the per-command permission table. The customer role is
// the anonymous public flow; commands listing it need no staff
// credential.
var roleGuards = map[Command][]shared.Role{
	CmdCreateDealerOrder:   {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdApproveDealerOrder:  {shared.RoleAdmin, shared.RoleEVMStaff},
	CmdRejectDealerOrder:   {shared.RoleAdmin, shared.RoleEVMStaff},
	CmdCancelDealerOrder:   {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager},
	CmdDeleteDealerOrder:   {shared.RoleAdmin},
	CmdProgressDealerOrder: {shared.RoleAdmin, shared.RoleEVMStaff},

	CmdCreateCustomerOrder: {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff, shared.RoleCustomer},
	CmdRejectCustomerOrder: {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdCancelCustomerOrder: {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff, shared.RoleCustomer},
	CmdDeleteCustomerOrder: {shared.RoleAdmin, shared.RoleDealerManager},
	CmdCompleteCustomer:    {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff},

	CmdCreateDealerQuote:   {shared.RoleAdmin, shared.RoleEVMStaff},
	CmdCreateCustomerQuote: {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdSendQuote:           {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdAcceptDealerQuote:   {shared.RoleAdmin, shared.RoleDealerManager},
	CmdAcceptCustomerQuote: {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff, shared.RoleCustomer},
	CmdRejectDealerQuote:   {shared.RoleAdmin, shared.RoleDealerManager},
	CmdRejectCustomerQuote: {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff, shared.RoleCustomer},

	CmdReserveUnit:  {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdReleaseUnit:  {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager},
	CmdRegisterUnit: {shared.RoleAdmin, shared.RoleEVMStaff},

	CmdRecordPayment:  {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff, shared.RoleCustomer},
	CmdConfirmPayment: {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdFailPayment:    {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdDeletePayment:  {shared.RoleAdmin, shared.RoleDealerManager},

	CmdScheduleDelivery: {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdDispatchDelivery: {shared.RoleAdmin, shared.RoleEVMStaff},
	CmdConfirmShipper:   {shared.RoleAdmin, shared.RoleEVMStaff},
	CmdConfirmDealer:    {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdConfirmAppt:      {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff, shared.RoleCustomer},
	CmdCompleteAppt:     {shared.RoleAdmin, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdCancelDelivery:   {shared.RoleAdmin, shared.RoleEVMStaff, shared.RoleDealerManager, shared.RoleDealerStaff},
	CmdDeleteDelivery:   {shared.RoleAdmin, shared.RoleDealerManager},
}

// authorize checks the actor in ctx against the command's role guard.
func authorize(actor shared.Actor, cmd Command) error {
	allowed, ok := roleGuards[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %s", ErrForbidden, cmd)
	}
	for _, role := range allowed {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot perform %s", ErrForbidden, actor.Role, cmd)
}
