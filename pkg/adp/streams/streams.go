// Package streams declares the ADP stream catalog: paths, keys, record
// selection paths, parent edges, classification rules and per-stream hooks.
// Everything here is static configuration consumed by the extraction engine.
package streams

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hcmdata/adp-connector/pkg/adp/extract"
)

// Context keys threaded from parent records into child requests.
const (
	WorkerAOIDKey    = "_sdc_worker_aoid"
	RequisitionIDKey = "_sdc_requisition_id"
	PayrollItemIDKey = "_sdc_payroll_item_id"
)

// payrollLookback widens the payroll window because recently completed
// payrolls surface late; a payroll can finish after younger ones.
const payrollLookback = 30 * 24 * time.Hour

// Definitions returns the full stream catalog in declaration order.
// Root streams run in this order.
func Definitions() []*extract.Definition {
	return []*extract.Definition{
		workers(),
		workerDemographic(),
		payDistribution(),
		payrollInstruction(),
		usTaxProfile(),
		jobRequisition(),
		jobApplication(),
		questionnaire(),
		department(),
		payDataInput(),
		payrollOutput(),
		payrollOutputAcc(),
	}
}

func workers() *extract.Definition {
	return &extract.Definition{
		Name:        "workers",
		Path:        "/hr/v2/workers",
		PrimaryKeys: []string{"associateOID"},
		RecordsPath: "workers",
		Paginated:   true,
		Headers: map[string]string{
			// Unmasked SSNs and bank details require this Accept variant
			"Accept": "application/json;masked=false",
		},
		ChildContext: func(record map[string]interface{}) extract.Context {
			return extract.Context{WorkerAOIDKey: stringField(record, "associateOID")}
		},
	}
}

func workerDemographic() *extract.Definition {
	return &extract.Definition{
		Name:        "worker_demographic",
		Path:        "/hr/v2/worker-demographics",
		PrimaryKeys: []string{"associateOID"},
		RecordsPath: "workers",
		Paginated:   true,
	}
}

func payDistribution() *extract.Definition {
	return &extract.Definition{
		Name:        "pay_distribution",
		Path:        "/payroll/v2/workers/{" + WorkerAOIDKey + "}/pay-distributions",
		PrimaryKeys: []string{"itemID"},
		RecordsPath: "payDistributions",
		Parent:      "workers",
		Rules: []extract.Rule{
			{
				Status:      http.StatusInternalServerError,
				BodyPath:    "confirmMessage.resourceMessages.0.processMessages.0.processMessageID.idValue",
				Equals:      "Exception in the requestHTTP 500 Internal Server Error",
				Action:      extract.ActionSoftSkip,
				Description: "no pay distribution for worker",
			},
		},
	}
}

func payrollInstruction() *extract.Definition {
	return &extract.Definition{
		Name:        "payroll_instruction",
		Path:        "/payroll/v1/workers/{" + WorkerAOIDKey + "}/payroll-instructions",
		PrimaryKeys: []string{"payrollAgreementID"},
		RecordsPath: "payrollInstructions",
		Parent:      "workers",
	}
}

func usTaxProfile() *extract.Definition {
	return &extract.Definition{
		Name:        "us_tax_profile",
		Path:        "/payroll/v1/workers/{" + WorkerAOIDKey + "}/us-tax-profiles",
		PrimaryKeys: []string{"itemID"},
		RecordsPath: "usTaxProfiles",
		Parent:      "workers",
		Rules: []extract.Rule{
			{
				Status:      http.StatusNotFound,
				Action:      extract.ActionSoftSkip,
				Description: "no US tax profile for worker",
			},
			{
				Status:      http.StatusBadRequest,
				BodyPath:    "confirmMessage.resourceMessages.0.processMessages.0.userMessage.messageTxt",
				Equals:      "Records are not available,  As of Date is invalid.",
				Action:      extract.ActionSoftSkip,
				Description: "US tax profile records not available",
			},
		},
	}
}

func jobRequisition() *extract.Definition {
	return &extract.Definition{
		Name:        "job_requisition",
		Path:        "/staffing/v1/job-requisitions",
		PrimaryKeys: []string{"itemID"},
		RecordsPath: "jobRequisitions",
		Paginated:   true,
		ChildContext: func(record map[string]interface{}) extract.Context {
			return extract.Context{RequisitionIDKey: stringField(record, "itemID")}
		},
	}
}

func jobApplication() *extract.Definition {
	return &extract.Definition{
		Name:        "job_application",
		Path:        "/staffing/v2/job-applications",
		PrimaryKeys: []string{"itemID"},
		RecordsPath: "jobApplications",
		Paginated:   true,
	}
}

func questionnaire() *extract.Definition {
	return &extract.Definition{
		Name:        "questionnaire",
		Path:        "/staffing/v3/work-fulfillment/recruiting-questionnaires/{" + RequisitionIDKey + "}",
		PrimaryKeys: []string{"questionnaireID"},
		RecordsPath: "@this",
		Parent:      "job_requisition",
	}
}

func department() *extract.Definition {
	return &extract.Definition{
		Name:        "department",
		Path:        "/hcm/v1/validation-tables/departments",
		PrimaryKeys: []string{"payrollGroupCode", "_sdc_namecode_code"},
		RecordsPath: "listItems",
		Paginated:   true,
		PostProcess: func(record map[string]interface{}, _ extract.Context) map[string]interface{} {
			// The primary key needs the nested name code, so flatten it
			if nameCode, ok := record["nameCode"].(map[string]interface{}); ok {
				record["_sdc_namecode_code"] = nameCode["code"]
			}
			return record
		},
	}
}

func payDataInput() *extract.Definition {
	return &extract.Definition{
		Name:        "pay_data_input",
		Path:        "/payroll/v1/pay-data-input",
		RecordsPath: "payDataInput",
	}
}

func payrollOutput() *extract.Definition {
	return &extract.Definition{
		Name:           "payroll_output",
		Path:           "/payroll/v2/payroll-output",
		PrimaryKeys:    []string{"itemID"},
		ReplicationKey: "_sdc_modified_schedule_entry_id",
		RecordsPath:    "payrollOutputs",
		BuildParams: func(_ extract.Context, bookmark time.Time) url.Values {
			params := url.Values{}
			if !bookmark.IsZero() {
				params.Set("$filter", fmt.Sprintf("payPeriodEndDate ge %s", bookmark.Format("20060102")))
			}
			return params
		},
		PostProcess: func(record map[string]interface{}, _ extract.Context) map[string]interface{} {
			// The schedule entry ID starts with the pay period date. The
			// replication value backs off 30 days because a completed
			// payroll can be more recent than ones still pending, and we
			// want the next run to re-pull that window.
			ref, ok := record["payrollScheduleReference"].(map[string]interface{})
			if !ok {
				return record
			}
			entryID := stringField(ref, "scheduleEntryID")
			if len(entryID) < 8 {
				return record
			}
			date, err := time.Parse("20060102", entryID[:8])
			if err != nil {
				return record
			}
			record["_sdc_modified_schedule_entry_id"] = date.Add(-payrollLookback)
			return record
		},
		ChildContext: func(record map[string]interface{}) extract.Context {
			return extract.Context{PayrollItemIDKey: stringField(record, "itemID")}
		},
	}
}

func payrollOutputAcc() *extract.Definition {
	return &extract.Definition{
		Name:        "payroll_output_acc",
		Path:        "/payroll/v2/payroll-output",
		PrimaryKeys: []string{"itemID"},
		RecordsPath: "payrollOutputs",
		Parent:      "payroll_output",
		BuildParams: func(ctx extract.Context, _ time.Time) url.Values {
			params := url.Values{}
			params.Set("level", "acc-all")
			params.Set("$filter", fmt.Sprintf("itemID eq %s", ctx[PayrollItemIDKey]))
			return params
		},
		Rules: []extract.Rule{
			{
				// Only observed for payrolls in a rejected status, so the
				// remaining acc-all pulls for this payroll are pointless
				Status:      http.StatusNotFound,
				BodyPath:    "confirmMessage.processMessages.#.developerMessage.messageTxt",
				Contains:    "still loading the acc-all payroll data",
				Action:      extract.ActionStopDescendants,
				Description: "acc-all payroll data still loading",
			},
			{
				Status:      http.StatusBadRequest,
				BodyPath:    "confirmMessage.processMessages.#.developerMessage.messageTxt",
				Equals:      "Mass Processing is currently Disabled.",
				Action:      extract.ActionStopDescendants,
				Description: "mass processing disabled",
			},
			{
				// EDL, DAT, PVE, NER, EER and similar payroll job states
				Status:      http.StatusBadRequest,
				BodyPath:    "confirmMessage.processMessages.#.developerMessage.codeValue",
				Equals:      "PAYGEN00030",
				Action:      extract.ActionStopDescendants,
				Description: "payroll job id in an invalid state",
			},
		},
	}
}

// stringField reads a field as a string, empty when absent or another type.
func stringField(record map[string]interface{}, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}
