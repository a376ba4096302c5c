package main

import (
	"log"

	"github.com/healthspace/chaincode/rdv-audit/rdvaudit"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

func main() {
	rdvAuditChaincode, err := contractapi.NewChaincode(&rdvaudit.SmartContract{})
	if err != nil {
		log.Panicf("Error creating RdvAudit chaincode: %v", err)
	}

	if err := rdvAuditChaincode.Start(); err != nil {
		log.Panicf("Error starting RdvAudit chaincode: %v", err)
	}
}
